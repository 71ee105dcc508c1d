// Package main runs the chapter platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chapterhub/backend/config"
	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/announcements"
	"github.com/chapterhub/backend/internal/auth"
	"github.com/chapterhub/backend/internal/documents"
	"github.com/chapterhub/backend/internal/duty"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/organizations"
	"github.com/chapterhub/backend/internal/permissions"
	"github.com/chapterhub/backend/internal/realtime"
	"github.com/chapterhub/backend/internal/reviews"
	"github.com/chapterhub/backend/pkg/database"
	"github.com/chapterhub/backend/pkg/queue"
	"github.com/chapterhub/backend/pkg/redis"
	"github.com/chapterhub/backend/pkg/response"
	"github.com/chapterhub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			DocumentsBucket:      cfg.AWS.DocumentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Activity trail
	activityRepo := activity.NewRepository(pool)
	activityLog := activity.NewLogger(activityRepo, logger)
	activityHandler := activity.NewHandler(activityRepo)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Permissions
	permRepo := permissions.NewRepository(pool)
	resolver := permissions.NewResolver(permRepo)
	permHandler := permissions.NewHandler(permRepo, resolver, activityLog)

	// Organizations, memberships, invites
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, permRepo, activityLog, pool, logger)

	// Documents (S3-backed versions)
	docRepo := documents.NewRepository(pool)
	docHandler := documents.NewHandler(docRepo, s3Client, activityLog)

	// Review threads
	reviewRepo := reviews.NewRepository(pool)
	reviewHandler := reviews.NewHandler(reviewRepo, docRepo, resolver, activityLog, jobQueue, hub, logger)

	// Duty scheduling
	dutyRepo := duty.NewRepository(pool)
	dutyHandler := duty.NewHandler(dutyRepo, resolver, activityLog, jobQueue, logger)

	// Announcements
	annRepo := announcements.NewRepository(pool)
	annHandler := announcements.NewHandler(annRepo, activityLog)

	validateToken := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}
	isMember := func(ctx context.Context, orgID, userID uuid.UUID) bool {
		return resolver.Load(ctx, orgID, userID).Member()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public organization lookup for prospective members. Slug routes live
	// outside /organizations so they cannot collide with :orgId.
	router.GET("/lookup/:slug", orgHandler.Lookup)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.PATCH("/auth/me", authHandler.UpdateProfile)

		api.GET("/organizations", orgHandler.ListMine)
		api.POST("/organizations", orgHandler.Create)
		api.POST("/join/:slug", orgHandler.JoinBySlug)

		api.GET("/invites", orgHandler.MyInvites)
		api.POST("/invites/:inviteId/respond", orgHandler.RespondInvite)

		api.GET("/me/reviews", reviewHandler.ListMine)
	}

	// Review threads: membership and recipient checks happen in the handler
	// because recipients may sit outside the thread's organization.
	rev := api.Group("/reviews/:id")
	{
		rev.GET("", reviewHandler.Get)
		rev.PATCH("", reviewHandler.Update)
		rev.POST("/send", reviewHandler.Send)
		rev.POST("/remind", reviewHandler.Remind)
		rev.POST("/request-changes", reviewHandler.RequestChanges)
		rev.POST("/close", reviewHandler.Close)
		rev.POST("/reopen", reviewHandler.Reopen)
		rev.POST("/versions", reviewHandler.AttachVersion)
		rev.POST("/recipients", reviewHandler.AddRecipient)
		rev.DELETE("/recipients/:recipientId", reviewHandler.RemoveRecipient)
		rev.POST("/recipients/:recipientId/view", reviewHandler.MarkViewed)
		rev.POST("/recipients/:recipientId/approve", reviewHandler.Approve)
		rev.POST("/recipients/:recipientId/decline", reviewHandler.Decline)
		rev.POST("/recipients/:recipientId/expire", reviewHandler.ExpireRecipient)
		rev.GET("/comments", reviewHandler.ListComments)
		rev.POST("/comments", reviewHandler.AddComment)
		rev.POST("/attachments", reviewHandler.AddAttachment)
	}

	// Organization-scoped API: membership resolved once, permission checks
	// per route. Admin bypass lives inside the resolver.
	org := api.Group("/organizations/:orgId")
	org.Use(permissions.RequireMember(resolver))
	{
		org.GET("", orgHandler.Get)
		org.PATCH("", permissions.RequirePermission(permissions.PermUpdateOrganization), orgHandler.Update)
		org.POST("/leave", orgHandler.Leave)

		org.GET("/members", permissions.RequirePermission(permissions.PermViewMembers), orgHandler.ListMembers)
		org.PATCH("/members/:userId/role", permissions.RequirePermission(permissions.PermManageRoles), orgHandler.ChangeRole)
		org.DELETE("/members/:userId", permissions.RequirePermission(permissions.PermRemoveMembers), orgHandler.RemoveMember)

		// Invite authorization is in the handler: member_can_invite may open
		// invite creation to plain members.
		org.POST("/invites", orgHandler.CreateInvite)
		org.GET("/invites", permissions.RequirePermission(permissions.PermInviteMembers), orgHandler.ListInvites)

		org.GET("/permissions", permHandler.GetCatalog)
		org.GET("/members/:userId/permissions", permHandler.GetMemberPermissions)
		org.POST("/members/:userId/permissions", permissions.RequirePermission(permissions.PermManagePermissions), permHandler.Grant)
		org.PUT("/members/:userId/permissions", permissions.RequirePermission(permissions.PermManagePermissions), permHandler.Sync)
		org.DELETE("/members/:userId/permissions/:permission", permissions.RequirePermission(permissions.PermManagePermissions), permHandler.Revoke)

		org.GET("/documents", permissions.RequirePermission(permissions.PermViewDocuments), docHandler.List)
		org.POST("/documents", permissions.RequirePermission(permissions.PermUploadDocuments), docHandler.Create)
		org.GET("/documents/:id", permissions.RequirePermission(permissions.PermViewDocuments), docHandler.Get)
		org.POST("/documents/:id/versions/upload-url", permissions.RequirePermission(permissions.PermUploadDocuments), docHandler.GenerateUploadURL)
		org.POST("/documents/:id/versions", permissions.RequirePermission(permissions.PermUploadDocuments), docHandler.AddVersion)
		org.GET("/documents/:id/versions/:versionId/download-url", permissions.RequirePermission(permissions.PermViewDocuments), docHandler.GenerateDownloadURL)

		org.GET("/announcements", permissions.RequirePermission(permissions.PermViewAnnouncements), annHandler.List)
		org.POST("/announcements", permissions.RequirePermission(permissions.PermManageAnnouncements), annHandler.Create)
		org.PATCH("/announcements/:announcementId", permissions.RequirePermission(permissions.PermManageAnnouncements), annHandler.Update)
		org.DELETE("/announcements/:announcementId", permissions.RequirePermission(permissions.PermManageAnnouncements), annHandler.Delete)

		org.GET("/reviews", permissions.RequirePermission(permissions.PermViewReviews), reviewHandler.ListByOrg)
		org.POST("/reviews", permissions.RequirePermission(permissions.PermCreateReviews), reviewHandler.Create)

		org.GET("/activity", permissions.RequirePermission(permissions.PermViewActivityLog), activityHandler.ListByOrg)

		dutyGroup := org.Group("/duty")
		{
			dutyGroup.GET("/schedules", permissions.RequirePermission(permissions.PermViewDutySchedules), dutyHandler.ListSchedules)
			dutyGroup.POST("/schedules", permissions.RequirePermission(permissions.PermManageDutySchedules), dutyHandler.CreateSchedule)
			dutyGroup.GET("/schedules/:scheduleId", permissions.RequirePermission(permissions.PermViewDutySchedules), dutyHandler.GetSchedule)
			dutyGroup.PATCH("/schedules/:scheduleId", permissions.RequirePermission(permissions.PermManageDutySchedules), dutyHandler.UpdateSchedule)
			dutyGroup.DELETE("/schedules/:scheduleId", permissions.RequirePermission(permissions.PermManageDutySchedules), dutyHandler.DeleteSchedule)
			dutyGroup.POST("/schedules/:scheduleId/duplicate", permissions.RequirePermission(permissions.PermManageDutySchedules), dutyHandler.DuplicateSchedule)
			dutyGroup.POST("/schedules/:scheduleId/publish", permissions.RequirePermission(permissions.PermManageDutySchedules), dutyHandler.PublishSchedule)
			dutyGroup.POST("/schedules/:scheduleId/cancel", permissions.RequirePermission(permissions.PermManageDutySchedules), dutyHandler.CancelSchedule)
			dutyGroup.POST("/schedules/:scheduleId/complete", permissions.RequirePermission(permissions.PermManageDutySchedules), dutyHandler.CompleteSchedule)

			dutyGroup.POST("/schedules/:scheduleId/assignments", permissions.RequirePermission(permissions.PermManageAssignments), dutyHandler.Assign)
			dutyGroup.DELETE("/assignments/:assignmentId", permissions.RequirePermission(permissions.PermManageAssignments), dutyHandler.RemoveAssignment)
			dutyGroup.POST("/assignments/:assignmentId/no-show", permissions.RequirePermission(permissions.PermManageAssignments), dutyHandler.MarkNoShow)

			// Officer self-service: implicit member permissions, no grants.
			dutyGroup.GET("/assignments/mine", dutyHandler.MyAssignments)
			dutyGroup.POST("/assignments/:assignmentId/respond", dutyHandler.Respond)
			dutyGroup.POST("/assignments/:assignmentId/check-in", dutyHandler.CheckIn)
			dutyGroup.POST("/assignments/:assignmentId/check-out", dutyHandler.CheckOut)

			dutyGroup.POST("/swaps", dutyHandler.CreateSwap)
			dutyGroup.GET("/swaps", permissions.RequirePermission(permissions.PermReviewSwaps), dutyHandler.ListSwaps)
			dutyGroup.POST("/swaps/:swapId/accept", dutyHandler.AcceptSwap)
			dutyGroup.POST("/swaps/:swapId/decline", dutyHandler.DeclineSwap)
			dutyGroup.POST("/swaps/:swapId/cancel", dutyHandler.CancelSwap)
			dutyGroup.POST("/swaps/:swapId/review", permissions.RequirePermission(permissions.PermReviewSwaps), dutyHandler.ReviewSwap)

			dutyGroup.GET("/stats/me", dutyHandler.MyStats)
			dutyGroup.GET("/stats/officers/:officerId", permissions.RequirePermission(permissions.PermViewDutyStatistics), dutyHandler.OfficerStats)
			dutyGroup.GET("/stats/fill-rate", permissions.RequirePermission(permissions.PermViewDutyStatistics), dutyHandler.FillRate)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, validateToken, isMember))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
