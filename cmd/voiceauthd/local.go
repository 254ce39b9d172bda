package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"voiceauth/internal/audio"
	"voiceauth/internal/enroll"
	"voiceauth/internal/template"

	"github.com/spf13/cobra"
)

// localRootCmd returns the "local" command group: enrollment and verification
// against the local database, bypassing the HTTP surface. Useful for operator
// testing and for seeding templates from recorded WAV files.
func localRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Run engine operations directly against the local database",
	}

	cmd.AddCommand(localEnrollCmd())
	cmd.AddCommand(localVerifyCmd())
	cmd.AddCommand(localRevokeCmd())
	cmd.AddCommand(localStatusCmd())

	return cmd
}

func readWAVFiles(paths []string) ([]*audio.Sample, error) {
	samples := make([]*audio.Sample, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sample, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func localEnrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <user-id> <sample.wav>...",
		Short: "Enroll a user from WAV files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg, false)
			if err != nil {
				return err
			}
			defer eng.close()

			samples, err := readWAVFiles(args[1:])
			if err != nil {
				return err
			}

			result, err := eng.enroller.Enroll(context.Background(), args[0], samples)
			if err != nil {
				return err
			}

			for _, report := range result.Samples {
				if report.Accepted {
					fmt.Printf("  sample %d: ok\n", report.Index)
				} else {
					fmt.Printf("  sample %d: rejected (%s)\n", report.Index, report.Reason)
				}
			}
			if result.Status != enroll.StatusEnrolled {
				return fmt.Errorf("enrollment failed: %s", result.Reason)
			}
			fmt.Printf("Enrolled %s: template version %d, quality %.3f\n",
				args[0], result.Version, result.Quality)
			return nil
		},
	}
}

func localVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <user-id> <sample.wav>",
		Short: "Verify a WAV file against a user's template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg, false)
			if err != nil {
				return err
			}
			defer eng.close()

			samples, err := readWAVFiles(args[1:2])
			if err != nil {
				return err
			}

			result, err := eng.verifier.Verify(context.Background(), args[0], samples[0])
			if err != nil {
				return err
			}

			fmt.Printf("attempt:  %s\n", result.AttemptID)
			fmt.Printf("decision: %s\n", result.Decision)
			fmt.Printf("reason:   %s\n", result.Reason)
			if result.Scored {
				// The operator CLI is a trusted surface.
				fmt.Printf("score:    %.4f\n", result.Score)
			}
			if !result.RetryAt.IsZero() {
				fmt.Printf("retry at: %s\n", result.RetryAt)
			}
			return nil
		},
	}
}

func localRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Revoke a user's active template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg, false)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.templates.Revoke(context.Background(), args[0], eng.extractor.Version()); err != nil {
				return err
			}
			fmt.Printf("Revoked active template for %s.\n", args[0])
			return nil
		},
	}
}

func localStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show a user's enrollment status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg, false)
			if err != nil {
				return err
			}
			defer eng.close()

			tmpl, err := eng.templates.GetActive(context.Background(), args[0], eng.extractor.Version())
			if errors.Is(err, template.ErrNotFound) {
				fmt.Printf("%s is not enrolled.\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("user:      %s\n", tmpl.UserID)
			fmt.Printf("extractor: %s\n", tmpl.ExtractorVersion)
			fmt.Printf("version:   %d\n", tmpl.Version)
			fmt.Printf("quality:   %.3f\n", tmpl.Quality)
			fmt.Printf("updated:   %s\n", tmpl.UpdatedAt)
			return nil
		},
	}
}
