package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

// GetSettings returns the singleton site settings row.
func (d *Database) GetSettings() (models.SiteSettings, error) {
	var s models.SiteSettings
	err := d.db.Get(&s, `SELECT * FROM site_settings WHERE id = 1`)
	return s, err
}

// UpdateEmailSettings replaces the SMTP delivery configuration.
func (d *Database) UpdateEmailSettings(
	server string, port int, user, password, sender string, now time.Time,
) error {
	res, err := d.db.Exec(`
		UPDATE site_settings
		SET email_server = $1, email_port = $2, email_user = $3,
		    email_password = $4, email_sender = $5, updated_at = $6
		WHERE id = 1
	`, server, port, user, password, sender, now)
	if err != nil {
		return fmt.Errorf("update email settings: %w", err)
	}
	return oneRowAffected(res)
}

// UpdateSitePolicy replaces the sign-in/sign-up policy and list paging knobs.
func (d *Database) UpdateSitePolicy(
	loginsAllowed, signupsAllowed bool, allowedDomains string,
	rowsPerPage int, now time.Time,
) error {
	res, err := d.db.Exec(`
		UPDATE site_settings
		SET logins_allowed = $1, signups_allowed = $2,
		    allowed_email_domains = $3, rows_per_page = $4, updated_at = $5
		WHERE id = 1
	`, loginsAllowed, signupsAllowed, allowedDomains, rowsPerPage, now)
	if err != nil {
		return fmt.Errorf("update site policy: %w", err)
	}
	return oneRowAffected(res)
}

// VotePolicyFromSettings builds the comment vote policy from the settings
// row's CSV flag key lists.
func VotePolicyFromSettings(s models.SiteSettings) VotePolicy {
	return VotePolicy{
		GoodFlagKeys: splitCSV(s.GoodFlagKeys),
		BadFlagKeys:  splitCSV(s.BadFlagKeys),
		MaxGoodVotes: s.MaxGoodVotes,
		MaxBadVotes:  s.MaxBadVotes,
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
