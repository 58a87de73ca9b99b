package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/johnnygreco/viz-inspect/internal/config"
	"github.com/johnnygreco/viz-inspect/internal/db"
	"github.com/johnnygreco/viz-inspect/internal/models"
	"github.com/johnnygreco/viz-inspect/internal/storage"
)

// loadcatalog imports a survey catalog CSV into the object_catalog table.
// Re-running it on the same CSV is a no-op for already-loaded objectids.
//
// The CSV needs objectid, ra and dec columns. When the forced-magnitude and
// extinction columns are present, extinction-corrected g-i and g-r colors
// are computed and stored with the other extra columns.

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to config file")
	catalogPath := flag.String("catalog", "", "Path to the catalog CSV (required)")
	imagePattern := flag.String("image-pattern", "candy-%d.png",
		"Bucket key pattern for each object's image, %d is the objectid")
	flag.Parse()

	log := logrus.New()

	if *catalogPath == "" {
		log.Fatal("-catalog is required")
	}
	if *cfgFile != "" {
		viper.SetConfigFile(*cfgFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	dsn := db.DSN(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password,
		cfg.DB.DBName, cfg.DB.SSLMode)
	conn, err := db.Connect(dsn)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	store := storage.NewDatabase(conn)
	defer store.Close()

	f, err := os.Open(*catalogPath)
	if err != nil {
		log.WithError(err).Fatal("open catalog")
	}
	defer f.Close()

	loaded, skipped, err := loadCatalog(store, f, *imagePattern)
	if err != nil {
		log.WithError(err).Fatal("load catalog")
	}
	log.WithFields(logrus.Fields{
		"loaded": loaded, "skipped": skipped,
	}).Info("catalog import done")
}

func loadCatalog(store *storage.Database, r io.Reader, imagePattern string) (int, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"objectid", "ra", "dec"} {
		if _, ok := col[required]; !ok {
			return 0, 0, fmt.Errorf("catalog is missing the %q column", required)
		}
	}

	now := time.Now().UTC()
	loaded, skipped := 0, 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return loaded, skipped, fmt.Errorf("line %d: %w", line, err)
		}

		obj, err := parseObject(header, col, record, now)
		if err != nil {
			skipped++
			logrus.WithError(err).WithField("line", line).Warn("skipping row")
			continue
		}

		imagePath := fmt.Sprintf(imagePattern, obj.ObjectID)
		if err := store.InsertObject(obj, imagePath); err != nil {
			return loaded, skipped, fmt.Errorf("line %d: %w", line, err)
		}
		loaded++
	}
	return loaded, skipped, nil
}

func parseObject(header []string, col map[string]int, record []string, now time.Time) (models.CatalogObject, error) {
	objectid, err := strconv.ParseInt(record[col["objectid"]], 10, 64)
	if err != nil {
		return models.CatalogObject{}, fmt.Errorf("bad objectid: %w", err)
	}
	ra, err := strconv.ParseFloat(record[col["ra"]], 64)
	if err != nil {
		return models.CatalogObject{}, fmt.Errorf("bad ra: %w", err)
	}
	dec, err := strconv.ParseFloat(record[col["dec"]], 64)
	if err != nil {
		return models.CatalogObject{}, fmt.Errorf("bad dec: %w", err)
	}

	extra := models.ExtraColumns{}
	for name, i := range col {
		if name == "objectid" || name == "ra" || name == "dec" {
			continue
		}
		if v, err := strconv.ParseFloat(record[i], 64); err == nil {
			extra[name] = v
		} else if record[i] != "" {
			extra[name] = record[i]
		}
	}
	addColors(extra)

	return models.CatalogObject{
		ObjectID:     objectid,
		RA:           ra,
		Dec:          dec,
		ExtraColumns: extra,
		ReviewStatus: models.ReviewIncomplete,
		Added:        now,
		Updated:      now,
	}, nil
}

// addColors computes extinction-corrected g-i and g-r colors from the
// forced total magnitudes, when all of the needed columns are present.
func addColors(extra models.ExtraColumns) {
	mag := func(name string) (float64, bool) {
		v, ok := extra[name].(float64)
		return v, ok
	}

	mg, okG := mag("m_tot_forced_g")
	mi, okI := mag("m_tot")
	mr, okR := mag("m_tot_forced_r")
	ag, okAG := mag("A_g")
	ai, okAI := mag("A_i")
	ar, okAR := mag("A_r")

	if okG && okI && okAG && okAI {
		extra["g-i"] = mg - mi - ag + ai
	}
	if okG && okR && okAG && okAR {
		extra["g-r"] = mg - mr - ag + ar
	}
}
