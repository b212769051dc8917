package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"commons-core/config"
	"commons-core/models"
	"commons-core/providers/ezid"
	"commons-core/providers/solr"
	"commons-core/providers/tika"
	"commons-core/services"
	"commons-core/storage"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	newDepositsCounter     prometheus.Counter
	depositFailuresCounter prometheus.Counter
)

func init() {
	newDepositsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "new_deposits_total",
			Help: "Total number of deposits registered.",
		},
	)
	depositFailuresCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deposit_failures_total",
			Help: "Total number of deposit attempts that were rejected or rolled back.",
		},
	)
	prometheus.MustRegister(newDepositsCounter, depositFailuresCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to deposits database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.DepositRecord{}, &models.Member{}, &models.Group{},
		&models.GroupMembership{}, &models.SubjectTerm{}, &models.KeywordTerm{},
		&models.PidCounter{}, &models.ActivityEntry{}, &models.Notification{},
		&models.CacheEntry{},
	)

	// Seeding
	seedDefaultSubjects(db, logging)
	seedReviewGroup(db, cfg, logging)

	// Setup Storage
	store := storage.NewStore(db, logging)
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	repository := storage.NewRepositoryStore(cfg, s3Client, logging)

	// Setup Providers
	searchIndex := solr.NewClient(cfg, logging)
	registry := ezid.NewClient(cfg, logging)
	extractor := tika.NewClient(cfg, logging)

	// Setup Services
	normalizer := services.NewMetadataNormalizer(cfg, store, store, logging)
	guard := services.NewDuplicateGuard(db)
	pids := services.NewPidAllocator(db)
	composer := services.NewDocumentComposer(logging)
	depositService := services.NewDepositService(cfg, normalizer, guard, pids, composer,
		store, store, searchIndex, repository, registry, extractor, logging,
		newDepositsCounter, depositFailuresCounter)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupDepositRoutes(router, depositService, store, logging)

	// Setup Cron
	sweeper := &services.ReindexSweeper{
		Queue:     store,
		Fetcher:   repository,
		Index:     searchIndex,
		Extractor: extractor,
		Logger:    logging,
		BatchSize: cfg.ReindexBatchSize,
	}
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.ReindexSchedule, func() {
		logging.Info("Running scheduled reindex sweep...")
		sweeper.Sweep(context.Background())
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupDepositRoutes(router *gin.Engine, depositService *services.DepositService, store *storage.Store, log *zap.Logger) {
	rg := router.Group("/deposits")

	// Registrierung eines neuen Deposits. Unbekannte Felder im Body
	// werden abgelehnt statt ignoriert.
	rg.POST("/", func(c *gin.Context) {
		var sub models.DepositSubmission
		decoder := json.NewDecoder(c.Request.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := binding.Validator.ValidateStruct(&sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := depositService.Deposit(c.Request.Context(), &sub)
		if err != nil {
			var valErr *services.ValidationError
			var dupErr *services.DuplicateError
			switch {
			case errors.As(err, &valErr):
				c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error()})
			case errors.As(err, &dupErr):
				c.JSON(http.StatusConflict, gin.H{
					"error":          "a matching deposit already exists",
					"existing_pid":   dupErr.ExistingPid,
					"existing_title": dupErr.ExistingTitle,
					"deposited_at":   dupErr.DepositedAt,
					"deposited_by":   dupErr.ScopeName,
				})
			default:
				log.Error("Deposit failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "deposit could not be registered"})
			}
			return
		}
		c.JSON(http.StatusCreated, result)
	})

	// Einzelnen Record über die Objekt-Id abrufen.
	rg.GET("/:pid", func(c *gin.Context) {
		rec, err := store.GetByPid(c.Param("pid"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "deposit not found"})
				return
			}
			log.Error("Database query for deposit failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	// Body-gesteuerter Endpunkt für Abfragen über die Records.
	rg.POST("/query", func(c *gin.Context) {
		var query struct {
			Status    string `json:"status"`
			Submitter string `json:"submitter"`
			Genre     string `json:"genre"`
			Limit     int    `json:"limit"`
		}
		if err := c.ShouldBindJSON(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if query.Limit <= 0 || query.Limit > 200 {
			query.Limit = 50
		}

		tx := store.DB.Model(&models.DepositRecord{}).Where("parent_id IS NULL")
		if query.Status != "" {
			tx = tx.Where("status = ?", query.Status)
		}
		if query.Submitter != "" {
			tx = tx.Where("submitter = ?", query.Submitter)
		}
		if query.Genre != "" {
			tx = tx.Where("genre = ?", query.Genre)
		}

		var recs []models.DepositRecord
		if err := tx.Order("created_at desc").Limit(query.Limit).Find(&recs).Error; err != nil {
			log.Error("Database query for deposits failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, recs)
	})
}

// seedDefaultSubjects legt die kontrollierten Subject-Terme an, falls
// sie noch fehlen.
func seedDefaultSubjects(db *gorm.DB, log *zap.Logger) {
	defaults := []string{
		"Art history", "Classical studies", "Comparative literature",
		"Composition (Languages)", "Digital humanities", "History",
		"Library science", "Linguistics", "Literature", "Music",
		"Philosophy", "Religious studies", "Rhetoric",
	}
	for _, name := range defaults {
		term := models.SubjectTerm{Name: name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&term).Error; err != nil {
			log.Warn("Subject seeding failed", zap.String("subject", name), zap.Error(err))
		}
	}
	log.Info("Default subjects seeded.")
}

// seedReviewGroup stellt sicher, dass die Review-Gruppe existiert.
func seedReviewGroup(db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	group := models.Group{Name: "Provisional Deposit Review", Slug: cfg.ReviewGroupSlug}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&group).Error; err != nil {
		log.Warn("Review group seeding failed", zap.Error(err))
	}
}
