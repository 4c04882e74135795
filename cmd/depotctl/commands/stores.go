package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/depotgo/depot/internal/cli/output"
	"github.com/depotgo/depot/internal/cli/prompt"
	"github.com/depotgo/depot/pkg/config"
	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/registry"
)

var rmForce bool

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Inspect and manipulate files in configured stores",
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured stores and aliases",
	RunE:  runStoresList,
}

var storesGetCmd = &cobra.Command{
	Use:   "get <store> <file-id> <dest-path>",
	Short: "Download a file to a local path",
	Args:  cobra.ExactArgs(3),
	RunE:  runStoresGet,
}

var storesPutCmd = &cobra.Command{
	Use:   "put <store> <local-path>",
	Short: "Upload a local file and print its assigned id",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoresPut,
}

var storesRmCmd = &cobra.Command{
	Use:   "rm <store> <file-id>",
	Short: "Delete a file from a store",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoresRm,
}

func init() {
	storesRmCmd.Flags().BoolVar(&rmForce, "force", false, "skip the confirmation prompt")
	storesCmd.AddCommand(storesListCmd)
	storesCmd.AddCommand(storesGetCmd)
	storesCmd.AddCommand(storesPutCmd)
	storesCmd.AddCommand(storesRmCmd)
}

func openRegistry(ctx context.Context) (*registry.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	reg, err := config.BuildRegistry(ctx, cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return reg, nil
}

func runStoresList(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry(cmd.Context())
	if err != nil {
		return err
	}

	def, _ := reg.GetDefault()
	rows := output.NewRows("NAME", "DEFAULT")
	for _, name := range reg.Names() {
		marker := ""
		if name == def {
			marker = "*"
		}
		rows.Add(name, marker)
	}
	for alias, target := range reg.Aliases() {
		rows.Add(fmt.Sprintf("%s -> %s", alias, target), "")
	}
	return output.PrintTable(os.Stdout, rows)
}

func resolveStore(reg *registry.Registry, name string) (driver.FileStorage, error) {
	return reg.Get(name)
}

func runStoresGet(cmd *cobra.Command, args []string) error {
	storeName, fileID, destPath := args[0], args[1], args[2]

	reg, err := openRegistry(cmd.Context())
	if err != nil {
		return err
	}
	store, err := resolveStore(reg, storeName)
	if err != nil {
		return err
	}

	f, err := store.Get(cmd.Context(), fileID)
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", storeName, fileID, err)
	}
	defer f.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()

	n, err := io.Copy(out, f)
	if err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	fmt.Printf("Wrote %d bytes to %s (filename=%q content-type=%q)\n", n, destPath, f.Filename(), f.ContentType())
	return nil
}

func runStoresPut(cmd *cobra.Command, args []string) error {
	storeName, localPath := args[0], args[1]

	reg, err := openRegistry(cmd.Context())
	if err != nil {
		return err
	}
	store, err := resolveStore(reg, storeName)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	id, err := store.Create(cmd.Context(), f, f.Name(), "")
	if err != nil {
		return fmt.Errorf("store %s: %w", localPath, err)
	}
	fmt.Printf("Stored as %s/%s\n", storeName, id)
	return nil
}

func runStoresRm(cmd *cobra.Command, args []string) error {
	storeName, fileID := args[0], args[1]

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s/%s?", storeName, fileID), rmForce)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	reg, err := openRegistry(cmd.Context())
	if err != nil {
		return err
	}
	store, err := resolveStore(reg, storeName)
	if err != nil {
		return err
	}
	if err := store.Delete(cmd.Context(), fileID); err != nil {
		return fmt.Errorf("delete %s/%s: %w", storeName, fileID, err)
	}
	fmt.Printf("Deleted %s/%s\n", storeName, fileID)
	return nil
}
