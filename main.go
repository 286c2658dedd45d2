package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"lab-reports/config"
	"lab-reports/models"
	"lab-reports/services"
	"lab-reports/storage"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	reportsUploadedCounter prometheus.Counter
	commentsCreatedCounter prometheus.Counter
)

func init() {
	reportsUploadedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_uploaded_total",
			Help: "Total number of reports uploaded.",
		},
	)
	commentsCreatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "comments_created_total",
			Help: "Total number of comments created.",
		},
	)
	prometheus.MustRegister(reportsUploadedCounter, commentsCreatedCounter)
}

const sessionUserKey = "username"

// currentUser löst den angemeldeten User aus der Session auf. Es gibt
// keine Passwort- oder Token-Prüfung: der Username in der Session reicht.
func currentUser(c *gin.Context, db *gorm.DB) *models.User {
	sess := sessions.Default(c)
	username, ok := sess.Get(sessionUserKey).(string)
	if !ok || username == "" {
		return nil
	}
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil
	}
	return &user
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

	db := connectWithRetry(cfg, logging)

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(
		&models.User{},
		&models.LabMeeting{},
		&models.Author{},
		&models.Affiliation{},
		&models.Tag{},
		&models.Paper{},
		&models.Report{},
		&models.Comment{},
	); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	router := setupRouter(cfg, db, logging)

	// Geplanter Snapshot-Export, nur wenn ein Bucket konfiguriert ist.
	if cfg.BackupS3Bucket != "" {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		exportService := services.NewExportService(cfg, db, s3Client, logging)

		cronScheduler := cron.New()
		cronScheduler.AddFunc(cfg.BackupSchedule, func() {
			logging.Info("Running scheduled report export...")
			link, err := exportService.Run(context.Background())
			if err != nil {
				logging.Error("Scheduled export failed", zap.Error(err))
			} else {
				logging.Info("Scheduled export completed", zap.String("s3_link", link))
			}
		})
		cronScheduler.Start()
	} else {
		logging.Info("BACKUP_S3_BUCKET not set, scheduled export disabled")
	}

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

// connectWithRetry versucht begrenzt oft mit fester Wartezeit, die
// Datenbank zu erreichen, und bricht danach hart ab.
func connectWithRetry(cfg *config.Config, logging *zap.Logger) *gorm.DB {
	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= cfg.DBConnectAttempts; attempt++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err == nil {
			logging.Info("Successfully connected to database", zap.Int("attempt", attempt))
			return db
		}
		logging.Warn("Database not ready, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.DBConnectAttempts),
			zap.Error(err))
		time.Sleep(time.Duration(cfg.DBConnectDelay) * time.Second)
	}
	logging.Fatal("Failed to connect to database",
		zap.Int("attempts", cfg.DBConnectAttempts),
		zap.Error(err))
	return nil
}

// setupRouter baut die komplette Gin-Engine. Aus main() herausgezogen,
// damit Tests dieselbe Engine gegen eine Test-DB starten können.
func setupRouter(cfg *config.Config, db *gorm.DB, logging *zap.Logger) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	// Interne App hinter Plain-HTTP: mit den Library-Defaults (Secure,
	// SameSite=None) würde der Browser das Session-Cookie verwerfen.
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("lab_reports_session", store))

	router.LoadHTMLGlob("templates/*")
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reportService := services.NewReportService(db, logging)
	queryService := services.NewQueryService(db, logging)

	setupPageRoutes(router, reportService, db, logging)
	setupUploadRoutes(router, reportService, db, logging)
	setupAuthRoutes(router, db, logging)
	setupCommentRoutes(router, db, logging)
	setupQueryRoutes(router, queryService, db, logging)
	setupTagRoutes(router, queryService, db, logging)

	return router
}

// setupPageRoutes konfiguriert Listen- und Detailansicht.
func setupPageRoutes(router *gin.Engine, reports *services.ReportService, db *gorm.DB, log *zap.Logger) {
	router.GET("/", func(c *gin.Context) {
		enriched, err := reports.List()
		if err != nil {
			log.Error("Database query for all reports failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.HTML(http.StatusOK, "index.html", gin.H{
			"reports":      enriched,
			"current_user": currentUser(c, db),
		})
	})

	router.GET("/reports/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		detail, err := reports.Detail(uint(id))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
				return
			}
			log.Error("DB error loading report detail", zap.Uint64("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.HTML(http.StatusOK, "report_detail.html", gin.H{
			"report":       detail,
			"current_user": currentUser(c, db),
		})
	})
}

// setupUploadRoutes konfiguriert das Upload-Formular und den Handler.
// Beide Endpunkte verlangen eine aktive Session.
func setupUploadRoutes(router *gin.Engine, reports *services.ReportService, db *gorm.DB, log *zap.Logger) {
	router.GET("/upload", func(c *gin.Context) {
		user := currentUser(c, db)
		if user == nil {
			c.Redirect(http.StatusFound, "/login")
			return
		}
		var meetings []models.LabMeeting
		db.Order("date desc").Find(&meetings)
		var papers []models.Paper
		db.Order("title asc").Find(&papers)
		c.HTML(http.StatusOK, "upload.html", gin.H{
			"meetings":     meetings,
			"papers":       papers,
			"current_user": user,
		})
	})

	router.POST("/upload", func(c *gin.Context) {
		user := currentUser(c, db)
		if user == nil {
			c.Redirect(http.StatusFound, "/login")
			return
		}

		input := services.ReportInput{
			Title:             c.PostForm("report_title"),
			Summary:           c.PostForm("report_summary"),
			SlidesLink:        c.PostForm("slides_link"),
			ExistingMeetingID: c.PostForm("existing_meeting_id"),
			MeetingTitle:      c.PostForm("meeting_title"),
			MeetingDate:       c.PostForm("meeting_date"),
			MeetingLocation:   c.PostForm("meeting_location"),
			ExistingPaperID:   c.PostForm("existing_paper_id"),
			PaperTitle:        c.PostForm("paper_title"),
			PublishedYear:     c.PostForm("published_year"),
			PublishedMonth:    c.PostForm("published_month"),
			Venue:             c.PostForm("venue"),
			TagsRaw:           c.PostForm("tags"),
		}
		// Indizierte Autorenfelder, beendet durch den ersten fehlenden Namen.
		for i := 0; ; i++ {
			name := c.PostForm(fmt.Sprintf("author_name_%d", i))
			if name == "" {
				break
			}
			input.Authors = append(input.Authors, services.AuthorInput{
				Name:         name,
				Affiliations: c.PostForm(fmt.Sprintf("author_affiliations_%d", i)),
			})
		}

		report, err := reports.Create(input, user)
		if err != nil {
			log.Error("Failed to create report from upload form", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create report"})
			return
		}
		reportsUploadedCounter.Inc()
		log.Info("Report uploaded",
			zap.Uint("report_id", report.ID),
			zap.String("title", report.Title),
			zap.String("username", user.Username))

		c.Redirect(http.StatusSeeOther, fmt.Sprintf("/reports/%d", report.ID))
	})
}

// setupAuthRoutes konfiguriert Registrierung, Login und Logout.
func setupAuthRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	router.GET("/register", func(c *gin.Context) {
		c.HTML(http.StatusOK, "register.html", gin.H{})
	})

	router.POST("/register", func(c *gin.Context) {
		username := c.PostForm("username")
		if username == "" {
			c.HTML(http.StatusOK, "register.html", gin.H{"error": "username required"})
			return
		}

		var existing models.User
		err := db.Where("username = ?", username).First(&existing).Error
		if err == nil {
			c.HTML(http.StatusOK, "register.html", gin.H{"error": "username exists"})
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("DB error checking username at registration", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		user := models.User{
			Username:    username,
			DisplayName: c.PostForm("display_name"),
		}
		if err := db.Create(&user).Error; err != nil {
			log.Error("Failed to create user", zap.String("username", username), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}

		sess := sessions.Default(c)
		sess.Set(sessionUserKey, username)
		if err := sess.Save(); err != nil {
			log.Error("Failed to save session at registration", zap.String("username", username), zap.Error(err))
		}
		c.Redirect(http.StatusSeeOther, "/")
	})

	router.GET("/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "login.html", gin.H{})
	})

	router.POST("/login", func(c *gin.Context) {
		username := c.PostForm("username")
		if username == "" {
			c.HTML(http.StatusOK, "login.html", gin.H{"error": "username required"})
			return
		}

		var user models.User
		err := db.Where("username = ?", username).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unbekannter Username wird im selben Request angelegt.
			user = models.User{Username: username, DisplayName: username}
			if err := db.Create(&user).Error; err != nil {
				log.Error("Failed to auto-create user at login", zap.String("username", username), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
				return
			}
			log.Info("User auto-created at login", zap.String("username", username))
		} else if err != nil {
			log.Error("DB error at login", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		sess := sessions.Default(c)
		sess.Set(sessionUserKey, username)
		if err := sess.Save(); err != nil {
			log.Error("Failed to save session at login", zap.String("username", username), zap.Error(err))
		}
		c.Redirect(http.StatusSeeOther, "/")
	})

	router.GET("/logout", func(c *gin.Context) {
		sess := sessions.Default(c)
		sess.Clear()
		if err := sess.Save(); err != nil {
			log.Error("Failed to clear session at logout", zap.Error(err))
		}
		c.Redirect(http.StatusFound, "/")
	})
}

// setupCommentRoutes konfiguriert das Anhängen von Kommentaren.
func setupCommentRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	router.POST("/comments", func(c *gin.Context) {
		user := currentUser(c, db)
		if user == nil {
			c.Redirect(http.StatusFound, "/login")
			return
		}

		reportID, err := strconv.ParseUint(c.PostForm("report_id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report_id"})
			return
		}
		var report models.Report
		if err := db.First(&report, uint(reportID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
				return
			}
			log.Error("DB error checking report for comment", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		comment := models.Comment{
			ReportID: report.ID,
			UserID:   user.ID,
			Content:  c.PostForm("content"),
		}
		if err := db.Create(&comment).Error; err != nil {
			log.Error("Failed to create comment", zap.Uint("report_id", report.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create comment"})
			return
		}
		commentsCreatedCounter.Inc()

		c.Redirect(http.StatusSeeOther, fmt.Sprintf("/reports/%d", report.ID))
	})
}

// setupQueryRoutes konfiguriert den Filter-Builder (UI + Endpoint).
func setupQueryRoutes(router *gin.Engine, queries *services.QueryService, db *gorm.DB, log *zap.Logger) {
	router.GET("/query_ui", func(c *gin.Context) {
		c.HTML(http.StatusOK, "query_ui.html", gin.H{
			"current_user": currentUser(c, db),
		})
	})

	router.POST("/query", func(c *gin.Context) {
		var req struct {
			Filters []services.FilterClause `json:"filters"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		results, err := queries.Run(req.Filters)
		if err != nil {
			log.Error("Dynamic query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, results)
	})
}

// setupTagRoutes konfiguriert die Tag-gefilterte Liste.
func setupTagRoutes(router *gin.Engine, queries *services.QueryService, db *gorm.DB, log *zap.Logger) {
	router.GET("/tags/:name", func(c *gin.Context) {
		name := c.Param("name")
		enriched, err := queries.ReportsByTag(name)
		if err != nil {
			log.Error("Tag listing failed", zap.String("tag", name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.HTML(http.StatusOK, "index.html", gin.H{
			"reports":      enriched,
			"tag":          name,
			"current_user": currentUser(c, db),
		})
	})
}
