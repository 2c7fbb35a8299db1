// Command seed-categories loads the category tree from a YAML file into
// the database.
//
//	seed-categories -file categories.yaml
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/config"
	"github.com/appstack-labs/marketplace/internal/domain/category"
	"github.com/appstack-labs/marketplace/internal/services/catalog"
	"github.com/appstack-labs/marketplace/internal/storage/postgres"
)

type seedCategory struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Children    []seedCategory `yaml:"children"`
}

type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
}

func main() {
	file := flag.String("file", "categories.yaml", "path to the category seed file")
	flag.Parse()

	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required to seed categories")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.WithError(err).Fatal("Failed to read seed file")
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		log.WithError(err).Fatal("Failed to parse seed file")
	}

	pg, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to open postgres store")
	}
	defer pg.Close()

	svc := catalog.New(pg, pg, pg, pg, log)

	ctx := context.Background()
	created, skipped := 0, 0
	var walk func(parentID string, nodes []seedCategory)
	walk = func(parentID string, nodes []seedCategory) {
		for _, node := range nodes {
			c, err := svc.CreateCategory(ctx, catalog.CategoryInput{
				Name:        node.Name,
				Description: node.Description,
				ParentID:    parentID,
			})
			switch {
			case err == nil:
				created++
			case apperr.Is(err, apperr.KindConflict):
				skipped++
				existing, lookupErr := findByName(ctx, pg, node.Name)
				if lookupErr != nil {
					log.WithField("category", node.Name).WithError(lookupErr).Fatal("Failed to resolve existing category")
				}
				c = existing
			default:
				log.WithField("category", node.Name).WithError(err).Fatal("Failed to create category")
			}
			walk(c.ID, node.Children)
		}
	}
	walk("", seed.Categories)

	log.WithFields(logrus.Fields{
		"created": created,
		"skipped": skipped,
	}).Info("Category seed complete")
}

func findByName(ctx context.Context, pg *postgres.Store, name string) (category.Category, error) {
	all, err := pg.ListCategories(ctx)
	if err != nil {
		return category.Category{}, err
	}
	for _, c := range all {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return category.Category{}, apperr.NotFound("category %s not found", name)
}
