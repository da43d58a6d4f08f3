// Command adminctl runs console operations from a terminal: listing and deleting
// records, uploading images, signing login challenges and maintaining draft
// snapshots.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/logger"
	"github.com/debemdeboas/backoffice/internal/upload"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244")).PaddingRight(2)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
)

type cli struct {
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
}

func main() {
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zerolog.Nop()}
	root := &cobra.Command{
		Use:          "adminctl",
		Short:        "Manage backoffice content from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(
		c.listCmd(),
		c.deleteCmd(),
		c.togglePublishCmd(),
		c.uploadCmd(),
		signCmd(),
		c.draftsCmd(),
	)
	return root
}

func (c *cli) load() error {
	boot := logger.New("warn")
	config.SetLogger(boot)
	if err := config.LoadConfig(c.configPath); err != nil {
		return err
	}
	c.cfg = config.AppConfig
	c.log = logger.New(c.cfg.Logging.Level)
	api.SetLogger(c.log)
	upload.SetLogger(c.log)
	return nil
}

func (c *cli) client() (*api.Client, error) {
	return api.New(api.OptionsFrom(c.cfg.Backend))
}
