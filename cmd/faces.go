package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/facematch"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage the known-face library",
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known faces, newest first",
	Args:  cobra.NoArgs,
	RunE:  runFacesList,
}

var facesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Enroll faces from a YAML or JSON file",
	Long: `Enroll faces from a YAML or JSON file holding a list of entries:

  - name: Alice
    encoding: [0.01, -0.12, ...]
    image_url: data:image/jpeg;base64,...
    wanted: false

The encoding may also be given as a string containing a JSON array.`,
	Args: cobra.ExactArgs(1),
	RunE: runFacesImport,
}

var facesMatchCmd = &cobra.Command{
	Use:   "match <descriptor-json>",
	Short: "Match a descriptor against the library",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesMatch,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesListCmd, facesImportCmd, facesMatchCmd)

	facesListCmd.Flags().Bool("json", false, "Output as JSON")

	facesImportCmd.Flags().Bool("wanted", false, "Flag every imported face as wanted")
	facesImportCmd.Flags().Bool("json", false, "Output the created IDs as JSON")

	facesMatchCmd.Flags().Float64("threshold", 0, "Match threshold in [0,1] (defaults to DEFAULT_THRESHOLD)")
	facesMatchCmd.Flags().Bool("json", false, "Output as JSON")
}

// FaceListItem is one row of `faces list --json`.
type FaceListItem struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
	Wanted     bool   `json:"wanted"`
	HasImage   bool   `json:"has_image"`
}

func runFacesList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, _ *config.Config, store database.Store) error {
		faces, err := store.ListFaces(ctx)
		if err != nil {
			return fmt.Errorf("failed to list faces: %w", err)
		}

		items := make([]FaceListItem, 0, len(faces))
		for _, f := range faces {
			items = append(items, FaceListItem{
				ID:         f.ID,
				Name:       f.Name,
				Dimensions: len(f.Encoding),
				Wanted:     f.Wanted,
				HasImage:   f.ImageURL != "",
			})
		}
		if jsonOutput {
			return outputJSON(items)
		}

		if len(items) == 0 {
			fmt.Println("No known faces")
			return nil
		}
		fmt.Printf("%-6s %-30s %-5s %s\n", "ID", "NAME", "DIMS", "WANTED")
		for _, it := range items {
			wanted := ""
			if it.Wanted {
				wanted = "yes"
			}
			fmt.Printf("%-6d %-30s %-5d %s\n", it.ID, it.Name, it.Dimensions, wanted)
		}
		fmt.Printf("\nTotal: %d\n", len(items))
		return nil
	})
}

// importEntry is one face in an import file.
type importEntry struct {
	Name     string `yaml:"name" json:"name"`
	Encoding any    `yaml:"encoding" json:"encoding"`
	ImageURL string `yaml:"image_url" json:"image_url"`
	Wanted   bool   `yaml:"wanted" json:"wanted"`
}

// parseFaceImport decodes an import file. Files ending in .json are read
// as JSON, everything else as YAML.
func parseFaceImport(data []byte, filename string) ([]database.KnownFace, error) {
	var entries []importEntry
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing JSON import file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing YAML import file: %w", err)
		}
	}

	faces := make([]database.KnownFace, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("entry %d: name required", i+1)
		}
		raw, err := json.Marshal(e.Encoding)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i+1, name, err)
		}
		encoding, err := facematch.ParseDescriptor(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i+1, name, err)
		}
		faces = append(faces, database.KnownFace{
			Name:     name,
			Encoding: encoding,
			ImageURL: e.ImageURL,
			Wanted:   e.Wanted,
		})
	}
	return faces, nil
}

func runFacesImport(cmd *cobra.Command, args []string) error {
	forceWanted := mustGetBool(cmd, "wanted")
	jsonOutput := mustGetBool(cmd, "json")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}
	faces, err := parseFaceImport(data, args[0])
	if err != nil {
		return err
	}
	if len(faces) == 0 {
		return errors.New("import file contains no faces")
	}

	return withStore(func(ctx context.Context, _ *config.Config, store database.Store) error {
		var bar *progressbar.ProgressBar
		if !jsonOutput {
			bar = progressbar.NewOptions(len(faces),
				progressbar.OptionSetDescription("Importing faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("faces"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}

		ids := make([]int64, 0, len(faces))
		for i := range faces {
			if forceWanted {
				faces[i].Wanted = true
			}
			id, err := store.CreateFace(ctx, &faces[i])
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", faces[i].Name, err)
			}
			ids = append(ids, id)
			if bar != nil {
				bar.Add(1)
			}
		}

		// The running server keeps its own HNSW index and rebuilds it on restart.
		if jsonOutput {
			return outputJSON(map[string]any{"imported": len(ids), "ids": ids})
		}
		fmt.Printf("\nImported %d faces\n", len(ids))
		return nil
	})
}

func runFacesMatch(cmd *cobra.Command, args []string) error {
	descriptor, err := facematch.ParseDescriptor(json.RawMessage(args[0]))
	if err != nil {
		return fmt.Errorf("invalid descriptor: %w", err)
	}
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, cfg *config.Config, store database.Store) error {
		threshold := cfg.Matcher.DefaultThreshold
		if cmd.Flags().Changed("threshold") {
			threshold = mustGetFloat64(cmd, "threshold")
			if threshold < 0 || threshold > 1 {
				return errors.New("threshold must be between 0 and 1")
			}
		}

		result, err := database.NewFaceMatcher(store, nil).Match(ctx, descriptor, threshold)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(result)
		}

		fmt.Printf("Status:     %s\n", result.Status)
		fmt.Printf("Name:       %s\n", result.Name)
		if result.Matched {
			fmt.Printf("Face ID:    %d\n", result.ID)
		}
		fmt.Printf("Distance:   %.4f (threshold %.2f)\n", result.Distance, threshold)
		fmt.Printf("Confidence: %.0f%%\n", result.Confidence*100)
		return nil
	})
}
