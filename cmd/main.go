package main

import (
	"fmt"
	"log"
	"os"

	_ "jukebox/docs"
	"jukebox/internal/auth"
	"jukebox/internal/handlers"
	"jukebox/internal/models"
	"jukebox/internal/storage"
	"jukebox/internal/tasks"
	"jukebox/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Джукбокс для учебных классов
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()
	storage.InitRedis()

	if err := storage.DB.AutoMigrate(&models.User{}, &models.Room{}, &models.QueueEntry{}); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	go ws.HubInstance.Run()
	tasks.InitScheduler()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", handlers.Login)
		authGroup.POST("/register", handlers.Register)
		authGroup.POST("/refresh", handlers.RefreshToken)
	}

	rooms := r.Group("/api/rooms", auth.AuthMiddleware())
	{
		rooms.GET("", handlers.ListRoomsHandler)
		rooms.POST("", auth.RequireTeacher(), handlers.CreateRoomHandler)
		rooms.GET("/join/:code", handlers.JoinRoomHandler)
		rooms.GET("/:id", handlers.GetRoomHandler)
		rooms.POST("/:id/close", handlers.CloseRoomHandler)

		rooms.GET("/:id/jukebox", handlers.GetQueueHandler)
		rooms.GET("/:id/jukebox/now", handlers.GetNowPlayingHandler)
		rooms.POST("/:id/jukebox", handlers.SubmitTrackHandler)
		rooms.POST("/:id/jukebox/advance", auth.RequireTeacher(), handlers.AdvanceQueueHandler)
		rooms.DELETE("/:id/jukebox/:entryID", handlers.RemoveEntryHandler)
	}

	// Лента изменений очереди — без JWT middleware, браузерный WebSocket не шлёт заголовки.
	r.GET("/api/rooms/:id/ws", ws.RoomWebSocketHandler)

	profile := r.Group("/profile", auth.AuthMiddleware())
	{
		profile.GET("/submissions", handlers.GetUserSubmissionsHandler)
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
