package control

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"voxnote/internal/backend"
	"voxnote/internal/config"
	"voxnote/internal/run"

	"github.com/spf13/cobra"
)

// NewCacheCmd manages audio downloaded for playback.
func NewCacheCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "List/fetch/clear downloaded audio",
	}
	cmd.AddCommand(newCacheListCmd(cfgPath))
	cmd.AddCommand(newCacheFetchCmd(cfgPath))
	cmd.AddCommand(newCacheClearCmd(cfgPath))
	return cmd
}

type cachedFile struct {
	Name string
	Size int64
}

func listCache(dir string) ([]cachedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []cachedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, cachedFile{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func newCacheListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List downloaded audio files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			files, err := listCache(cfg.Paths.CacheDir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				cmd.Println("cache is empty:", cfg.Paths.CacheDir)
				return nil
			}
			for _, f := range files {
				cmd.Printf("- %s (%d bytes)\n", f.Name, f.Size)
			}
			return nil
		},
	}
}

func newCacheFetchCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <file>",
		Short: "Download a file the backend serves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			be, err := backend.New(run.BackendOptions(cfg), nil)
			if err != nil {
				return err
			}
			cmd.Printf("downloading %s\n", be.FileURL(args[0]))
			dest, err := be.Fetch(contextOf(cmd), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("saved to %s\n", dest)
			return nil
		},
	}
}

func newCacheClearCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete downloaded audio files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			files, err := listCache(cfg.Paths.CacheDir)
			if err != nil {
				return err
			}
			for _, f := range files {
				if err := os.Remove(filepath.Join(cfg.Paths.CacheDir, f.Name)); err != nil {
					return fmt.Errorf("remove %s: %w", f.Name, err)
				}
			}
			cmd.Printf("removed %d file(s)\n", len(files))
			return nil
		},
	}
}
