package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/controllers"
)

func RegisterRoutes(r *gin.Engine, imports *controllers.ImportController, scans *controllers.ScanController) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	importRoutes := r.Group("/imports")
	{
		importRoutes.POST("", imports.Upload)
		importRoutes.GET("/template", imports.Template)
		importRoutes.GET("/jobs/:id", imports.JobStatus)
		importRoutes.GET("/:id", imports.Get)
		importRoutes.DELETE("/:id", imports.Discard)
		importRoutes.POST("/:id/recheck", imports.Recheck)
		importRoutes.POST("/:id/submit", imports.Submit)
		importRoutes.POST("/:id/print", imports.Print)
	}

	r.GET("/printers", imports.Printers)

	scanRoutes := r.Group("/scan")
	{
		scanRoutes.POST("", scans.Manual)
		scanRoutes.GET("/ws", scans.Stream)
	}
}
