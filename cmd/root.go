package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/gridstitch/internal/artifact"
	"github.com/kiesman99/gridstitch/internal/collage"
	"github.com/kiesman99/gridstitch/pkg/layout"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gridstitch [flags] <image>...",
	Short: "Combine several images into one square grid image",
	Long: `gridstitch arranges images on a near-square grid and writes a single
square PNG or JPEG.

Every image is scaled to fit its cell without changing its aspect ratio and
centered on a white background. Images are placed row by row in the order
given.

Examples:
  # Four photos into a 1024x1024 PNG
  gridstitch a.jpg b.jpg c.jpg d.jpg -o grid.png

  # Larger JPEG without outer padding
  gridstitch *.png --format jpeg --size 4096 --padding 0 -o grid.jpeg

  # Pipe the result somewhere else
  gridstitch a.png b.png > grid.png

  # Start HTTP server with the upload form
  gridstitch serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no args, show help
		if len(args) == 0 {
			return cmd.Help()
		}
		return runCollage(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gridstitch.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("artifact-dir", artifact.DefaultDir(), "directory for stored compositions")

	// Output options
	rootCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	rootCmd.Flags().StringP("format", "f", "png", "output format (png|jpeg)")
	rootCmd.Flags().Int("jpeg-quality", layout.DefaultJPEGQuality, "JPEG quality (1-100)")
	rootCmd.Flags().Bool("keep-artifact", false, "also store the result in the artifact directory")

	// Layout options
	rootCmd.Flags().IntP("size", "s", layout.DefaultSize, "output edge length in pixels (1024|2048|4096)")
	rootCmd.Flags().IntP("padding", "p", layout.DefaultPadding, "outer margin in pixels")
	rootCmd.Flags().Int("spacing", layout.DefaultSpacing, "gap between cells in pixels")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("artifact-dir", rootCmd.PersistentFlags().Lookup("artifact-dir"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("format", rootCmd.Flags().Lookup("format"))
	viper.BindPFlag("jpeg-quality", rootCmd.Flags().Lookup("jpeg-quality"))
	viper.BindPFlag("keep-artifact", rootCmd.Flags().Lookup("keep-artifact"))
	viper.BindPFlag("size", rootCmd.Flags().Lookup("size"))
	viper.BindPFlag("padding", rootCmd.Flags().Lookup("padding"))
	viper.BindPFlag("spacing", rootCmd.Flags().Lookup("spacing"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".gridstitch" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".gridstitch")
	}

	// GRIDSTITCH_PADDING, GRIDSTITCH_SERVER_PORT, ...
	viper.SetEnvPrefix("gridstitch")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the stderr logger for the configured level.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", viper.GetString("log-level"))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// layoutParams collects layout options from flags, environment and config
// file. Sizes outside SupportedSizes are refused here; the composer itself
// accepts any positive size.
func layoutParams() (layout.Params, error) {
	params := layout.DefaultParams()

	format, err := layout.ParseFormat(viper.GetString("format"))
	if err != nil {
		return params, err
	}
	params.Format = format

	params.Size = viper.GetInt("size")
	if !layout.IsSupportedSize(params.Size) {
		return params, fmt.Errorf("unsupported size %d (want one of %v)", params.Size, layout.SupportedSizes)
	}
	params.Padding = viper.GetInt("padding")
	params.Spacing = viper.GetInt("spacing")

	params.JPEGQuality = viper.GetInt("jpeg-quality")

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

func runCollage(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	params, err := layoutParams()
	if err != nil {
		return err
	}

	opts := &collage.Options{
		Output:       viper.GetString("output"),
		Params:       params,
		KeepArtifact: viper.GetBool("keep-artifact"),
	}
	if opts.KeepArtifact {
		opts.Store, err = artifact.NewOSStore(viper.GetString("artifact-dir"))
		if err != nil {
			return err
		}
	}

	collager := collage.NewCollager(opts, logger)
	collager.Stdout = cmd.OutOrStdout()

	outcome, err := collager.CollageFiles(args)
	if err != nil {
		return err
	}
	if outcome != nil && outcome.Artifact != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Stored artifact %s\n", outcome.Artifact.Name)
	}
	return nil
}
