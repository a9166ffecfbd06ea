package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	aiagentapp "github.com/taxcrm/backend/internal/application/aiagent"
	auditapp "github.com/taxcrm/backend/internal/application/audit"
	backupapp "github.com/taxcrm/backend/internal/application/backup"
	billingapp "github.com/taxcrm/backend/internal/application/billing"
	crmapp "github.com/taxcrm/backend/internal/application/crm"
	documentapp "github.com/taxcrm/backend/internal/application/document"
	identityapp "github.com/taxcrm/backend/internal/application/identity"
	portalapp "github.com/taxcrm/backend/internal/application/portal"
	schedulingapp "github.com/taxcrm/backend/internal/application/scheduling"
	taxcaseapp "github.com/taxcrm/backend/internal/application/taxcase"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/backup"
	"github.com/taxcrm/backend/internal/domain/billing"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/document"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/auth"
	"github.com/taxcrm/backend/internal/infrastructure/cache"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"github.com/taxcrm/backend/internal/infrastructure/crypto"
	"github.com/taxcrm/backend/internal/infrastructure/event"
	"github.com/taxcrm/backend/internal/infrastructure/llm"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"github.com/taxcrm/backend/internal/infrastructure/mail"
	"github.com/taxcrm/backend/internal/infrastructure/persistence"
	"github.com/taxcrm/backend/internal/infrastructure/printing"
	"github.com/taxcrm/backend/internal/infrastructure/scheduler"
	"github.com/taxcrm/backend/internal/infrastructure/storage"
	"github.com/taxcrm/backend/internal/infrastructure/telemetry"
	"github.com/taxcrm/backend/internal/interfaces/http/handler"
	"github.com/taxcrm/backend/internal/interfaces/http/middleware"
	"github.com/taxcrm/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

// objectStore is the blob storage shared by documents and backups
type objectStore interface {
	documentapp.ObjectStorage
	backupapp.ObjectStorage
	Ping(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Tax CRM backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if cfg.Telemetry.SpanProfiles && profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Metrics
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meterProvider.Meter("taxcrm"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create business metrics", zap.Error(err))
	}
	defer businessMetrics.Stop()

	// Database
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := persistence.Open(connectCtx, &cfg.Database,
		persistence.WithQueryLog(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh))
	cancelConnect()
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", db.PoolFields()...)

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Redis-backed locks and token blacklist, in-memory when redis is down
	backends, err := cache.NewBackendFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create(ctx)
	if err != nil {
		log.Fatal("Failed to initialize redis backends", zap.Error(err))
	}
	defer func() {
		if err := backends.Close(); err != nil {
			log.Error("Error closing redis", zap.Error(err))
		}
	}()

	// Field and archive encryption
	cipher, err := crypto.NewFernetCipher(cfg.Crypto.FernetKey)
	if err != nil {
		log.Fatal("Invalid Fernet key", zap.Error(err))
	}
	fieldCipher := crypto.NewFieldCipher(cipher)

	// Object storage
	objects, err := newObjectStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	// Outbound email, PDF rendering and the LLM client
	mailer := mail.NewSender(cfg.Mail, log)
	renderer := printing.NewChromedpRenderer(&printing.ChromedpConfig{
		DefaultTimeout: 30 * time.Second,
		NoSandbox:      true,
		Logger:         log,
	})
	defer func() {
		if err := renderer.Close(); err != nil {
			log.Error("Error closing PDF renderer", zap.Error(err))
		}
	}()
	invoicePrinter := printing.NewInvoicePrinter(renderer)

	var completer llm.Completer
	if cfg.AI.OpenAIKey != "" || cfg.AI.AnthropicKey != "" {
		completer = llm.NewClient(cfg.AI, log)
	} else {
		log.Info("No LLM provider configured; agent cycles use rule-based suggestions")
	}

	// Initialize repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	roleRepo := persistence.NewGormRoleRepository(db.DB)
	departmentRepo := persistence.NewGormDepartmentRepository(db.DB)
	contactRepo := persistence.NewGormContactRepository(db.DB)
	corporationRepo := persistence.NewGormCorporationRepository(db.DB)
	caseRepo := persistence.NewGormTaxCaseRepository(db.DB)
	folderRepo := persistence.NewGormFolderRepository(db.DB)
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	appointmentRepo := persistence.NewGormAppointmentRepository(db.DB)
	taskRepo := persistence.NewGormTaskRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	portalAccessRepo := persistence.NewGormPortalAccessRepository(db.DB)
	portalMessageRepo := persistence.NewGormPortalMessageRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)
	backupRepo := persistence.NewGormBackupRepository(db.DB)
	definitionRepo := persistence.NewGormApprovalDefinitionRepository(db.DB)
	approvalRepo := persistence.NewGormApprovalRepository(db.DB)
	agentConfigRepo := persistence.NewGormAgentConfigRepository(db.DB)
	agentRunRepo := persistence.NewGormAgentRunRepository(db.DB)
	agentSuggestionRepo := persistence.NewGormAgentSuggestionRepository(db.DB)
	archives := persistence.NewArchiveStore(db.DB)

	// Event bus and background scheduler
	eventBus := event.NewInMemoryEventBus(log)

	jobs, err := scheduler.NewScheduler(scheduler.Config{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		RetryAttempts:     cfg.Scheduler.RetryAttempts,
		RetryDelay:        cfg.Scheduler.RetryDelay,
	}, log)
	if err != nil {
		log.Fatal("Failed to create scheduler", zap.Error(err))
	}
	if err := jobs.SetBusinessMetrics(businessMetrics); err != nil {
		log.Fatal("Failed to observe scheduler queue", zap.Error(err))
	}

	definitionCache, err := cache.NewDefinitionCache(256)
	if err != nil {
		log.Fatal("Failed to create definition cache", zap.Error(err))
	}

	// Workflow engine; it is the approval gate of every guarded module
	dispatcher := workflowapp.NewActionDispatcher(mailer, workflowapp.NewDirectoryRecipients(userRepo, contactRepo), taskRepo, eventBus, log)
	registerUpdaters(dispatcher, updaterRepos{
		cases:        caseRepo,
		invoices:     invoiceRepo,
		documents:    documentRepo,
		contacts:     contactRepo,
		corporations: corporationRepo,
		tasks:        taskRepo,
	}, eventBus, log)
	engine := workflowapp.NewEngine(definitionRepo, approvalRepo, definitionCache, dispatcher, eventBus, log)
	engine.SetBusinessMetrics(businessMetrics)
	definitionService := workflowapp.NewDefinitionService(definitionRepo, definitionCache, eventBus, log)

	// Identity services
	jwtService := auth.NewJWTService(cfg.JWT, auth.RealmStaff)
	portalJWTService := auth.NewJWTService(cfg.PortalJWT, auth.RealmPortal)
	authService := identityapp.NewAuthService(tenantRepo, userRepo, roleRepo, jwtService, backends.Blacklist, eventBus, log)
	tenantService := identityapp.NewTenantService(tenantRepo, roleRepo, userRepo, eventBus, log)
	userService := identityapp.NewUserService(userRepo, roleRepo, departmentRepo, eventBus, log)
	roleService := identityapp.NewRoleService(roleRepo, eventBus, log)
	departmentService := identityapp.NewDepartmentService(departmentRepo, eventBus, log)

	// Practice services
	contactService := crmapp.NewContactService(contactRepo, corporationRepo, fieldCipher, engine, eventBus, log)
	corporationService := crmapp.NewCorporationService(corporationRepo, contactRepo, fieldCipher, engine, eventBus, log)
	caseService := taxcaseapp.NewService(caseRepo, contactRepo, corporationRepo, engine, eventBus, log)
	folderService := documentapp.NewFolderService(folderRepo, departmentRepo, contactRepo, corporationRepo, eventBus, log)
	documentService := documentapp.NewService(documentRepo, folderService, contactRepo, corporationRepo, objects, engine, eventBus, log)
	appointmentService := schedulingapp.NewAppointmentService(appointmentRepo, contactRepo, userRepo, eventBus, log)
	taskService := schedulingapp.NewTaskService(taskRepo, engine, eventBus, log)
	invoiceService := billingapp.NewInvoiceService(invoiceRepo, contactRepo, corporationRepo, tenantRepo, invoicePrinter, mailer, engine, eventBus, log)

	// Portal services
	portalAccessService := portalapp.NewAccessService(portalAccessRepo, contactRepo, tenantRepo, mailer, cfg.App.PublicURL, eventBus, log)
	portalAuthService := portalapp.NewAuthService(tenantRepo, portalAccessRepo, contactRepo, portalJWTService, backends.Blacklist, eventBus, log)
	chatService := portalapp.NewChatService(portalMessageRepo, contactRepo, eventBus, log)

	// Audit, backups and the agent
	auditService := auditapp.NewService(auditRepo)
	backupService := backupapp.NewService(backupRepo, corporationRepo, objects, cipher, jobs, eventBus, log)
	backupExecutor := backupapp.NewExecutor(backupRepo, archives, objects, cipher, backends.Locker, cfg.Backup.LockTTL, eventBus, log)
	backupExecutor.SetBusinessMetrics(businessMetrics)
	policy := backup.DefaultPolicy()
	if cfg.Backup.MaxAge > 0 {
		policy.MaxAge = cfg.Backup.MaxAge
	}
	if cfg.Backup.RetentionCount > 0 {
		policy.RetentionCount = cfg.Backup.RetentionCount
	}
	autoBackup := backupapp.NewAutoBackup(backupRepo, tenantRepo, auditRepo, backupService, policy, log)
	agentService := aiagentapp.NewService(
		agentConfigRepo,
		agentRunRepo,
		agentSuggestionRepo,
		contactRepo,
		caseRepo,
		aiagentapp.NewSignalCollector(taskRepo, caseRepo, invoiceRepo, contactRepo),
		completer,
		taskService,
		jobs,
		eventBus,
		log,
	)
	reminders := schedulingapp.NewReminderJob(appointmentRepo, contactRepo, mailer, cfg.Scheduler.ReminderWindow, log)

	// Event handlers for cross-context integration
	auditRecorder := auditapp.NewRecorder(auditRepo, log)
	eventBus.Subscribe(auditRecorder, auditRecorder.EventTypes()...)
	approvalDecided := taxcaseapp.NewApprovalDecidedHandler(caseRepo, eventBus, log)
	eventBus.Subscribe(approvalDecided, approvalDecided.EventTypes()...)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Job executors run even with triggers disabled so that manual backups proceed
	jobs.Register(scheduler.JobKindBackup, backupExecutor)
	jobs.Register(scheduler.JobKindRestore, backupExecutor)
	jobs.Register(scheduler.JobKindAgentCycle, agentService)
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := jobs.Stop(stopCtx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}()

	if cfg.Scheduler.Enabled {
		triggers := []struct {
			config   scheduler.TriggerConfig
			provider scheduler.TenantProvider
			task     scheduler.TenantTask
		}{
			{
				config:   scheduler.TriggerConfig{Name: "appointment-reminders", Interval: cfg.Scheduler.ReminderInterval},
				provider: tenantRepo,
				task:     reminders.RunTenant,
			},
			{
				config:   scheduler.TriggerConfig{Name: "agent-cycles", Interval: cfg.Scheduler.AgentInterval},
				provider: aiagentapp.EnabledTenants{Configs: agentConfigRepo},
				task:     agentService.RunIfDue,
			},
		}
		if cfg.Backup.AutoEnabled {
			triggers = append(triggers, struct {
				config   scheduler.TriggerConfig
				provider scheduler.TenantProvider
				task     scheduler.TenantTask
			}{
				config:   scheduler.TriggerConfig{Name: "auto-backup", Interval: cfg.Backup.CheckInterval, RunOnStart: true},
				provider: tenantRepo,
				task:     autoBackup.RunTenant,
			})
		}
		for _, tr := range triggers {
			trigger, err := scheduler.NewTenantTrigger(tr.config, tr.provider, tr.task, log)
			if err != nil {
				log.Fatal("Failed to create trigger", zap.String("trigger", tr.config.Name), zap.Error(err))
			}
			if err := trigger.Start(ctx); err != nil {
				log.Fatal("Failed to start trigger", zap.String("trigger", tr.config.Name), zap.Error(err))
			}
			defer trigger.Stop()
		}
		log.Info("Periodic triggers started", zap.Int("count", len(triggers)))
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup custom validators
	middleware.SetupValidator()

	ginEngine := gin.New()
	if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	// Middleware stack; request ID first so every later layer can log it
	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(logger.Recovery(log))
	ginEngine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	ginEngine.Use(middleware.SpanAttributes())
	ginEngine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       cfg.Telemetry.MetricsEnabled,
		Logger:        log,
	}))
	ginEngine.Use(logger.GinMiddleware(log))
	ginEngine.Use(middleware.SecureWithConfig(middleware.DefaultSecurityConfig()))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	ginEngine.Use(middleware.CORSWithConfig(corsConfig))
	ginEngine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize, cfg.HTTP.MaxUploadSize))
	ginEngine.Use(middleware.SpanErrorMarker())

	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
		ginEngine.Use(middleware.RateLimit(limiter))
	}

	loginLimit := func(c *gin.Context) { c.Next() }
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		defer authLimiter.Stop()
		loginLimit = middleware.RateLimitByKey(authLimiter, func(c *gin.Context) string {
			return "login:" + c.ClientIP()
		})
	}

	// Readiness probes
	checks := map[string]handler.Pinger{
		"database": handler.PingFunc(db.Ping),
		"storage":  objects,
	}
	if backends.Client != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return backends.Client.Ping(ctx).Err()
		})
	}
	systemHandler := handler.NewSystemHandler(version, checks)
	ginEngine.GET("/health", systemHandler.Health)
	ginEngine.GET("/ready", systemHandler.Ready)

	// Suspended tenants are rejected after authentication
	tenantGuard := middleware.DefaultTenantGuardConfig(middleware.TenantValidatorFunc(
		func(ctx context.Context, tenantID uuid.UUID) (bool, error) {
			tenant, err := tenantRepo.FindByID(ctx, tenantID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return false, nil
				}
				return false, err
			}
			return tenant.IsActive(), nil
		}))
	tenantGuard.Logger = log

	g := guards{
		staff: []gin.HandlerFunc{
			middleware.StaffAuth(middleware.AuthConfig{JWTService: jwtService, Blacklist: backends.Blacklist, Logger: log}),
			middleware.TenantGuard(tenantGuard),
		},
		portal: []gin.HandlerFunc{
			middleware.PortalAuth(middleware.AuthConfig{JWTService: portalJWTService, Blacklist: backends.Blacklist, Logger: log}),
			middleware.TenantGuard(tenantGuard),
		},
		login: loginLimit,
	}

	h := &handlers{
		auth:         handler.NewAuthHandler(authService, userService),
		tenants:      handler.NewTenantHandler(tenantService),
		users:        handler.NewUserHandler(userService),
		roles:        handler.NewRoleHandler(roleService),
		departments:  handler.NewDepartmentHandler(departmentService),
		contacts:     handler.NewContactHandler(contactService),
		corporations: handler.NewCorporationHandler(corporationService),
		cases:        handler.NewCaseHandler(caseService),
		documents:    handler.NewDocumentHandler(documentService, folderService),
		appointments: handler.NewAppointmentHandler(appointmentService),
		tasks:        handler.NewTaskHandler(taskService),
		invoices:     handler.NewInvoiceHandler(invoiceService),
		portalAuth:   handler.NewPortalAuthHandler(portalAuthService),
		portalAccess: handler.NewPortalAccessHandler(portalAccessService),
		chat:         handler.NewChatHandler(chatService),
		client:       handler.NewClientHandler(documentService, invoiceService, appointmentService),
		audit:        handler.NewAuditHandler(auditService),
		workflow:     handler.NewWorkflowHandler(definitionService, engine),
		backups:      handler.NewBackupHandler(backupService),
		agent:        handler.NewAgentHandler(agentService),
		system:       systemHandler,
	}

	r := router.NewRouter(ginEngine, router.WithAPIVersion("v1"))
	registerRoutes(r, h, g)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newObjectStore returns S3 storage when a bucket is configured, and an
// in-process store for local development otherwise
func newObjectStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (objectStore, error) {
	if cfg.Storage.Bucket == "" {
		if cfg.App.Env == "production" {
			return nil, errors.New("storage bucket is required in production")
		}
		log.Warn("No storage bucket configured; documents and backups are kept in memory")
		return storage.NewMemoryObjectStorage(), nil
	}
	s3, err := storage.NewS3ObjectStorage(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiry),
	)
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3, nil
}

// updaterRepos are the repositories whose records workflow actions may edit
type updaterRepos struct {
	cases        taxcase.Repository
	invoices     billing.InvoiceRepository
	documents    document.Repository
	contacts     crm.ContactRepository
	corporations crm.CorporationRepository
	tasks        scheduling.TaskRepository
}

func registerUpdaters(d *workflowapp.ActionDispatcher, repos updaterRepos, events shared.EventPublisher, log *zap.Logger) {
	d.RegisterUpdater(workflow.ModuleTaxCase, workflowapp.NewRepositoryUpdater(repos.cases.FindByID, repos.cases.Save, events, log))
	d.RegisterUpdater(workflow.ModuleInvoice, workflowapp.NewRepositoryUpdater(repos.invoices.FindByID, repos.invoices.Save, events, log))
	d.RegisterUpdater(workflow.ModuleDocument, workflowapp.NewRepositoryUpdater(repos.documents.FindByID, repos.documents.Save, events, log))
	d.RegisterUpdater(workflow.ModuleContact, workflowapp.NewRepositoryUpdater(repos.contacts.FindByID, repos.contacts.Save, events, log))
	d.RegisterUpdater(workflow.ModuleCorporation, workflowapp.NewRepositoryUpdater(repos.corporations.FindByID, repos.corporations.Save, events, log))
	d.RegisterUpdater(workflow.ModuleTask, workflowapp.NewRepositoryUpdater(repos.tasks.FindByID, repos.tasks.Save, events, log))
}
