package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/autodock-deploy/config"
	"github.com/autodock-deploy/database"
	"github.com/autodock-deploy/handlers"
	"github.com/autodock-deploy/lib/compute"
	"github.com/autodock-deploy/middleware"
	"github.com/autodock-deploy/progress"
	"github.com/autodock-deploy/services"
)

func main() {
	config.LoadEnv()
	settings := config.LoadSettings()

	if problems := settings.Validate(); len(problems) > 0 {
		for _, p := range problems {
			log.Println("⚠️  Config:", p)
		}
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	manager, err := compute.NewManager(context.Background(), settings)
	if err != nil {
		log.Fatalf("Failed to initialize EC2 manager: %v", err)
	}

	hub := progress.NewHub()
	orchestrator := services.NewOrchestratorService(settings, manager, hub)
	instanceService := services.NewInstanceService(settings, manager)
	applicationService := services.NewApplicationService(settings)
	statsService := services.NewStatsService()

	deploymentHandler := handlers.NewDeploymentHandler(orchestrator)
	applicationHandler := handlers.NewApplicationHandler(applicationService)
	instanceHandler := handlers.NewInstanceHandler(instanceService)
	statsHandler := handlers.NewStatsHandler(statsService)
	wsHandler := handlers.NewWSHandler(hub)
	authHandler := handlers.NewAuthHandler(settings)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		AllowCredentials: true,
	}))
	router.Use(middleware.Auth(settings))

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "autodock-deploy",
			"version": "1.0.0",
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/token", authHandler.Token)

		api.POST("/deployments", deploymentHandler.Create)
		api.GET("/deployments", deploymentHandler.List)
		api.GET("/deployments/:id", deploymentHandler.Get)
		api.GET("/deployments/:id/logs", deploymentHandler.Logs)

		api.GET("/applications", applicationHandler.List)
		api.GET("/applications/:id", applicationHandler.Get)
		api.POST("/applications/:id/stop", applicationHandler.Stop)
		api.DELETE("/applications/:id", applicationHandler.Remove)

		api.GET("/stats", statsHandler.Summary)

		api.GET("/instances", instanceHandler.List)
		api.POST("/instances/sync", instanceHandler.Sync)
		api.GET("/instances/:id", instanceHandler.Get)
		api.POST("/instances/:id/stop", instanceHandler.Stop)
		api.POST("/instances/:id/start", instanceHandler.Start)
		api.DELETE("/instances/:id", instanceHandler.Terminate)
		api.GET("/instances/:id/containers/:container/logs", instanceHandler.ContainerLogs)
		api.GET("/instances/:id/containers/:container/status", instanceHandler.ContainerStatus)
	}

	router.GET("/ws/deployments/:id", wsHandler.Stream)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 AutoDock Deploy starting on port %s", port)
	log.Printf("💡 API Authentication: Enabled (X-API-Key or Bearer token)")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
