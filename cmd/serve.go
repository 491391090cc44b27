package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"munin/internal/apihandlers"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the munin HTTP API server",
	Long: `Starts an HTTP server exposing the run API: trigger runs, inspect the
run ledger and receive GitHub push webhooks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		router := gin.Default() // Includes logger and recovery middleware

		// --- Setup API Routes ---
		apiHandler := apihandlers.NewAPIHandler(appInstance)

		v1 := router.Group("/api/v1")
		{
			runsGroup := v1.Group("/runs")
			{
				runsGroup.POST("", apiHandler.TriggerRunHandler)
				runsGroup.GET("", apiHandler.ListRunsHandler)
				runsGroup.GET("/:id", apiHandler.GetRunHandler)
			}

			webhookGroup := v1.Group("/webhooks")
			{
				webhookGroup.POST("/github", apiHandler.GitHubWebhookHandler)
			}
		}

		// Simple health check endpoint
		router.GET("/health", func(c *gin.Context) {
			if err := appInstance.RunStore.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		listenAddr := appInstance.Config.Server.Address
		if serveAddr != "" {
			listenAddr = serveAddr
		}
		log.Infof("starting munin API server on %s", listenAddr)

		// router.Run blocks unless an error occurs
		if err := router.Run(listenAddr); err != nil {
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.address, e.g. ':8080')")
}
