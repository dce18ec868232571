package router

import (
	"net/http"

	"github.com/FatimahAdwan/survey-alignment/config"
	"github.com/FatimahAdwan/survey-alignment/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(
	cfg *config.Config,
	surveyHandler *handler.SurveyHandler,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		surveys := api.Group("/surveys")
		{
			surveys.POST("", surveyHandler.Create)
			surveys.POST("/:id/next", surveyHandler.Next)
			surveys.POST("/:id/answers", surveyHandler.Answer)
			surveys.POST("/:id/abandon", surveyHandler.Abandon)
			surveys.GET("/:id/progress", surveyHandler.Progress)
			surveys.GET("/:id/questions", surveyHandler.Questions)
		}

		api.GET("/catalog/themes", surveyHandler.Themes)
	}

	return r
}
