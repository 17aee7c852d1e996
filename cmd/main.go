package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"defect-pipeline/config"
	"defect-pipeline/internal/container"
	"defect-pipeline/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "defectctl",
		Short:         "Двухэтапный конвейер визуального контроля качества",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "путь к YAML-файлу конфигурации")

	root.AddCommand(newInspectCmd(&configPath))
	root.AddCommand(newTrainCmd(&configPath))
	return root
}

// bootstrap загружает окружение, конфигурацию и собирает конвейер.
func bootstrap(cmd *cobra.Command, configPath string) (*container.Container, *zap.Logger, error) {
	// .env опционален, его отсутствие не ошибка.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	c, err := container.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return c, log, nil
}

func newInspectCmd(configPath *string) *cobra.Command {
	var (
		textQuery  string
		forceMatch bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Проверяет изображение и печатает результат конвейера в JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, log, err := bootstrap(cmd, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			result := c.Pipeline.InspectAndMatch(cmd.Context(), image, textQuery, forceMatch)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&textQuery, "text", "t", "", "текстовый запрос к базе знаний")
	cmd.Flags().BoolVar(&forceMatch, "force-match", false, "сопоставлять даже при вердикте OK")
	return cmd
}

func newTrainCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train <dir>",
		Short: "Обучает банк аномалий на каталоге годных изображений",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, log, err := bootstrap(cmd, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			images, err := readImages(args[0])
			if err != nil {
				return err
			}
			if len(images) == 0 {
				return fmt.Errorf("no images found in %s", args[0])
			}

			if err := c.Engine.TrainAnomaly(cmd.Context(), images); err != nil {
				return fmt.Errorf("training failed: %w", err)
			}

			log.Info("anomaly bank training finished", zap.Int("samples", len(images)))
			return nil
		},
	}
	return cmd
}

func readImages(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var images [][]byte
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		images = append(images, data)
	}
	return images, nil
}
