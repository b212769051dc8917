package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"commons-core/config"
	"commons-core/models"
	"commons-core/services"
	"commons-core/storage"
)

// Einmal-Werkzeug: legt das Collection-Elternobjekt der Site an und
// gibt dessen Pid aus (Wert für COLLECTION_PID).
func main() {
	log.Println("Lege Collection-Elternobjekt an...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatalf("Fehler beim Verbinden mit der Datenbank: %v", err)
	}
	if err := db.AutoMigrate(&models.PidCounter{}); err != nil {
		log.Fatalf("Fehler bei der Migration: %v", err)
	}

	// Die Collection bekommt ihre Id aus einem eigenen Namespace.
	pids := services.NewPidAllocator(db)
	pid, err := pids.Allocate(cfg.PidNamespace + "collection")
	if err != nil {
		log.Fatalf("Fehler bei der Pid-Vergabe: %v", err)
	}

	title := fmt.Sprintf("Collection parent object for %s", cfg.PidNamespace)
	composer := services.NewDocumentComposer(zap.NewNop())
	dc, err := composer.AggregatorDC(pid, "", title, "Collection")
	if err != nil {
		log.Fatalf("Fehler beim Erzeugen des DC-Satzes: %v", err)
	}
	rdf, err := composer.AggregatorRDF(pid, "", true, "BagAggregator")
	if err != nil {
		log.Fatalf("Fehler beim Erzeugen des RDF-Graphen: %v", err)
	}
	foxml, warning, err := composer.FOXML(pid, title, dc, "Active", rdf)
	if err != nil {
		log.Fatalf("Fehler beim Erzeugen des Objekt-Wrappers: %v", err)
	}
	if warning != "" {
		log.Printf("Warnung: %s", warning)
	}

	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		log.Fatalf("Fehler beim Erstellen des S3-Clients: %v", err)
	}
	repository := storage.NewRepositoryStore(cfg, s3Client, zap.NewNop())
	if _, err := repository.IngestObject(context.Background(), pid, models.KindAggregator, foxml); err != nil {
		log.Fatalf("Fehler beim Repository-Ingest: %v", err)
	}

	log.Printf("Collection-Objekt angelegt. COLLECTION_PID=%s", pid)
}
