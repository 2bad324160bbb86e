package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marccodess/brain-tumor-detection/internal/config"
)

// newConfigCmd создаёт команду для работы с файлом конфигурации.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Работа с файлом конфигурации",
	}

	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

// newConfigInitCmd создаёт команду генерации примера конфигурации.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Создать пример файла конфигурации mriprep.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "mriprep.yaml"

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("файл %s уже существует (используйте --force для перезаписи)", path)
			}

			if err := os.WriteFile(path, []byte(config.GenerateExampleConfig()), 0644); err != nil {
				return fmt.Errorf("не удалось записать %s: %w", path, err)
			}

			fmt.Printf("✅ Создан файл конфигурации: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Перезаписать существующий файл")

	return cmd
}
