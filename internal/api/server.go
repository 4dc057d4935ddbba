package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/rifadigital/rifa-api/docs"
	v1 "github.com/rifadigital/rifa-api/internal/api/handler/v1"
	"github.com/rifadigital/rifa-api/internal/api/middleware"
	"github.com/rifadigital/rifa-api/internal/config"
	"github.com/rifadigital/rifa-api/internal/draw"
	"github.com/rifadigital/rifa-api/internal/reminder"
	"github.com/rifadigital/rifa-api/internal/repository"
	"github.com/rifadigital/rifa-api/internal/repository/dao"
	"github.com/rifadigital/rifa-api/internal/service"
	"github.com/rifadigital/rifa-api/internal/store"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine

	reminders *reminder.Scheduler
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config:    conf,
		Router:    engine,
		reminders: reminder.NewScheduler(),
	}

	s.MountMiddlewares()

	authHandler := s.initAuthHandler(db)
	userHandler := s.initUserHandler(db)
	raffleHandler := s.initRaffleHandler(db)
	s.MountHandlers(authHandler, userHandler, raffleHandler)

	return s
}

// Close releases resources owned by the server, such as pending
// reminders.
func (s *Server) Close() {
	s.reminders.Close()
}

func (s *Server) initAuthHandler(db *gorm.DB) *v1.AuthHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewAuthService(repo)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initUserHandler(db *gorm.DB) *v1.UserHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewUserService(repo)
	handler := v1.NewUserHandler(svc)

	return handler
}

func (s *Server) initRaffleHandler(db *gorm.DB) *v1.RaffleHandler {
	raffleDAO := dao.NewRaffleDAO(db)
	repo := repository.NewRaffleRepository(raffleDAO)
	raffleStore := store.New(repo, store.WithReminders(s.reminders))
	engine := draw.NewEngine()
	handler := v1.NewRaffleHandler(raffleStore, engine)

	return handler
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(authHandler *v1.AuthHandler, userHandler *v1.UserHandler, raffleHandler *v1.RaffleHandler) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath, middleware.RateLimit(5, 10))
	{
		auth.POST("/auth/signup", authHandler.HandleSignup)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	users := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		users.GET("/users/:userID", userHandler.HandleGetUser)
	}

	raffles := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		raffles.GET("/raffles", raffleHandler.HandleListRaffles)
		raffles.POST("/raffles", raffleHandler.HandleCreateRaffle)
		raffles.GET("/raffles/ws", raffleHandler.HandleSubscribe)
		raffles.GET("/raffles/:raffleID", raffleHandler.HandleGetRaffle)
		raffles.PUT("/raffles/:raffleID", raffleHandler.HandleUpdateRaffle)
		raffles.DELETE("/raffles/:raffleID", raffleHandler.HandleDeleteRaffle)
		raffles.PUT("/raffles/:raffleID/tickets/:ticketNumber", raffleHandler.HandleUpdateTicket)
		raffles.POST("/raffles/:raffleID/draw", raffleHandler.HandleDrawWinner)
		raffles.GET("/raffles/:raffleID/draw/ws", raffleHandler.HandleDrawStream)
	}

	s.Router.GET("/", v1.HandleHealthcheck)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Raffle API"
	docs.SwaggerInfo.Description = "API for creating raffles, selling tickets and drawing winners."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
