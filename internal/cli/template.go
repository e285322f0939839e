package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vendor-risk-service/internal/config"
	"vendor-risk-service/internal/domain"
	pgstore "vendor-risk-service/internal/infra/postgres"
	rediscache "vendor-risk-service/internal/infra/redis"
	"vendor-risk-service/internal/logger"
	"vendor-risk-service/internal/templateschema"
)

// NewTemplateCmd groups the template authoring commands.
func NewTemplateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Validate and import questionnaire templates",
	}
	cmd.AddCommand(newTemplateValidateCmd())
	cmd.AddCommand(newTemplateImportCmd(configPath))
	return cmd
}

func newTemplateValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a template document without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template %s is valid: %d sections, %d questions\n",
				template.ID, len(template.Sections), template.QuestionCount())
			return nil
		},
	}
}

func newTemplateImportCmd(configPath *string) *cobra.Command {
	var (
		vendorID        string
		questionnaireID string
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a template and optionally invite a vendor to answer it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			template, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openBunDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			store := pgstore.NewTemplateStore(db)
			if err := store.UpsertTemplate(ctx, template); err != nil {
				return err
			}
			log.Info("template imported", zap.String("templateId", template.ID))

			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer client.Close()
				if err := rediscache.NewTemplateRepository(client, nil, 0, log).Invalidate(ctx, template.ID); err != nil {
					log.Warn("invalidate cached template", zap.String("templateId", template.ID), zap.Error(err))
				}
			}

			if vendorID == "" {
				return nil
			}
			if questionnaireID == "" {
				questionnaireID = uuid.NewString()
			}
			if err := store.InviteVendor(ctx, questionnaireID, template.ID, vendorID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "questionnaire %s created for vendor %s\n", questionnaireID, vendorID)
			return nil
		},
	}
	cmd.Flags().StringVar(&vendorID, "invite", "", "vendor id to create a questionnaire for")
	cmd.Flags().StringVar(&questionnaireID, "questionnaire-id", "", "id of the created questionnaire (random when empty)")
	return cmd
}

// readTemplate loads and validates a template document from disk.
func readTemplate(path string) (domain.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Template{}, err
	}
	validator, err := templateschema.New()
	if err != nil {
		return domain.Template{}, err
	}
	template, problems, err := validator.Parse(data)
	if err != nil {
		return domain.Template{}, err
	}
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "%s: %s\n", p.Path, p.Message)
		}
		return domain.Template{}, fmt.Errorf("%s: %d problems found", path, len(problems))
	}
	return template, nil
}
