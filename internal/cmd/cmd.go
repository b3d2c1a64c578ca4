// SPDX-License-Identifier: MIT

// Package cmd implements the udib command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/udib-project/udib/internal/artifact"
	"github.com/udib-project/udib/internal/fetch"
	"github.com/udib-project/udib/internal/iso"
)

// options carries the global flag values shared by all subcommands.
type options struct {
	outputFile  string
	outputDir   string
	configPath  string
	keyringPath string
	timeout     time.Duration
	verbose     bool

	// executing flips once a subcommand body runs, so earlier failures
	// are reported as usage errors.
	executing bool
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, errWriter io.Writer) int {
	opts := &options{}

	// Errors during flag parsing are reported before PersistentPreRun
	// ever runs, so logging must already point at errWriter here.
	setupLogging(errWriter, opts.verbose)

	root := newRootCommand(opts, errWriter)
	root.SetArgs(args)
	root.SetErr(errWriter)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	if !opts.executing {
		err = &usageError{err: err}
	}

	category, code := categorize(err)
	slog.Error(err.Error(), slog.String("category", category))

	return code
}

func newRootCommand(opts *options, errWriter io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "udib",
		Short: "Build customized Debian installation media",
		Long: `udib retrieves Debian installation images and preseed files, splices
preseed (or arbitrary) files into an image's initrd and repacks a new
BIOS and UEFI bootable image.

Note that the Debian installer picks up an automated-install answer
file from the initrd root only under the exact name "preseed.cfg".
Files are injected under their own names, rename yours accordingly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(errWriter, opts.verbose)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.outputFile, "output-file", "o", "",
		"file as which the retrieved or generated file is saved")
	flags.StringVarP(&opts.outputDir, "output-dir", "O", "",
		"directory into which the retrieved or generated file is written")
	flags.StringVar(&opts.configPath, "config", "",
		"mirror configuration file (YAML)")
	flags.StringVar(&opts.keyringPath, "keyring", "",
		"local keyring file with the image signing key, instead of a keyserver")
	flags.DurationVar(&opts.timeout, "timeout", fetch.DefaultTimeout,
		"overall timeout for network operations")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"enable debug output")

	root.MarkFlagsMutuallyExclusive("output-file", "output-dir")

	root.AddCommand(newGetCommand(opts))
	root.AddCommand(newInjectCommand(opts))

	return root
}

func newGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get WHAT",
		Short: "Retrieve an unmodified Debian image or example preseed file",
		Long: "Retrieve an artifact and verify its integrity. WHAT is one of: " +
			strings.Join(artifact.Names(), ", ") + ".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			art, err := artifact.Lookup(args[0])
			if err != nil {
				return err
			}

			opts.executing = true

			cfg, err := artifact.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}

			cfg.Apply(&art)

			target, err := opts.resolveTarget()
			if err != nil {
				return err
			}

			fetcher, err := opts.newFetcher(cmd.Context(), cfg, art)
			if err != nil {
				return err
			}

			path, err := fetcher.Fetch(cmd.Context(), art, target)
			if err != nil {
				return err
			}

			slog.Info("Artifact saved", slog.String("path", path))

			return nil
		},
	}
}

func newInjectCommand(opts *options) *cobra.Command {
	var (
		imageFile string
		volumeID  string
	)

	cmd := &cobra.Command{
		Use:   "inject FILE...",
		Short: "Inject files into a Debian image's initrd",
		Long: `Inject the given files into the initrd of a Debian installation image
and repack a new bootable image. Without --image-file, the latest
stable netinst image is downloaded and verified first.

On duplicate base names the later file wins and a warning is printed.
The installer only recognizes an answer file named "preseed.cfg".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.executing = true

			cfg, err := artifact.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}

			// Validate the output location up front. Downloading a
			// base image just to fail on the output target would
			// waste the whole transfer.
			target, err := opts.resolveTarget()
			if err != nil {
				return err
			}

			image := imageFile
			if image == "" {
				image, err = opts.fetchBaseImage(cmd.Context(), cfg)
				if err != nil {
					return err
				}

				defer func() {
					_ = os.RemoveAll(filepath.Dir(image))
				}()
			}

			output, err := resolveInjectOutput(target, image)
			if err != nil {
				return err
			}

			err = iso.Inject(cmd.Context(), &iso.Runner{}, iso.InjectSpec{
				Image:    image,
				Files:    args,
				Output:   output,
				VolumeID: volumeID,
			})
			if err != nil {
				return err
			}

			slog.Info("Image created", slog.String("path", output))

			return nil
		},
	}

	cmd.Flags().StringVarP(&imageFile, "image-file", "i", "",
		"image to modify, instead of downloading one")
	cmd.Flags().StringVar(&volumeID, "volid", iso.DefaultVolumeID,
		"filesystem label of the created image")

	return cmd
}

// fetchBaseImage downloads a verified base image into a scoped temporary
// directory and returns its path. The caller removes the directory.
func (o *options) fetchBaseImage(
	ctx context.Context,
	cfg artifact.Config,
) (string, error) {
	art, err := artifact.Lookup(artifact.NameISO)
	if err != nil {
		return "", err
	}

	cfg.Apply(&art)

	fetcher, err := o.newFetcher(ctx, cfg, art)
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "udib-image-*")
	if err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}

	path, err := fetcher.Fetch(ctx, art, fetch.Target{Dir: dir})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	return path, nil
}

// newFetcher builds a fetcher whose keyring holds the artifact's signing
// key, taken from a local keyring file or imported from a keyserver.
func (o *options) newFetcher(
	ctx context.Context,
	cfg artifact.Config,
	art artifact.Artifact,
) (*fetch.Fetcher, error) {
	client := &http.Client{Timeout: o.timeout}
	keyring := fetch.NewKeyring(client)

	if art.Verified() {
		if o.keyringPath != "" {
			err := keyring.ImportFromFile(o.keyringPath)
			if err != nil {
				return nil, err
			}
		} else {
			err := keyring.ImportFromKeyserver(
				ctx, art.SigningKey, cfg.KeyserverOrDefault())
			if err != nil {
				return nil, err
			}
		}
	}

	return fetch.New(client, keyring), nil
}
