package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Hemanth143-hy/heart-rate-server/internal/config"
	"github.com/Hemanth143-hy/heart-rate-server/internal/gattdb"
	"github.com/Hemanth143-hy/heart-rate-server/internal/hrs"
)

func rootCmd() *cobra.Command {
	configPath := ""
	root := &cobra.Command{
		Use:           "hrsdb",
		Short:         "hrsdb inspects the heart rate sensor attribute database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"config file supplying the device information strings")

	state := func() (*hrs.State, error) {
		return loadState(configPath)
	}

	root.AddCommand(dumpCmd(state))
	root.AddCommand(imageCmd())
	root.AddCommand(indexCmd(state))
	root.AddCommand(verifyCmd(state))
	root.AddCommand(decodeCmd())
	return root
}

// loadState builds the peripheral state from the config at path, or from
// the defaults when path is empty.
func loadState(path string) (*hrs.State, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return hrs.NewState(cfg.DeviceInfo.Info())
}

func dumpCmd(state func() (*hrs.State, error)) *cobra.Command {
	return &cobra.Command{
		Use:     "dump",
		Short:   "Print the attribute table and the value index",
		Example: "  hrsdb dump",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := hrs.Database().Dump(out); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return s.Index().Dump(out)
		},
	}
}

func imageCmd() *cobra.Command {
	raw := false
	cmd := &cobra.Command{
		Use:     "image",
		Short:   "Print the encoded database image",
		Example: "  hrsdb image\n  hrsdb image --raw > hrs.img",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			img := hrs.Database().Image()
			out := cmd.OutOrStdout()
			if raw {
				_, err := out.Write(img)
				return err
			}
			_, err := io.WriteString(out, hex.Dump(img))
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "write raw bytes instead of a hex dump")
	return cmd
}

func indexCmd(state func() (*hrs.State, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Print the external value index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state()
			if err != nil {
				return err
			}
			return s.Index().Dump(cmd.OutOrStdout())
		},
	}
}

func verifyCmd(state func() (*hrs.State, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the database image and index for consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state()
			if err != nil {
				return err
			}
			db := hrs.Database()
			if err := db.VerifyImage(); err != nil {
				return err
			}
			if n := db.ImageLen(); n != hrs.ImageLen {
				return fmt.Errorf("image is %d bytes, want %d", n, hrs.ImageLen)
			}
			if err := s.Index().Verify(db); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: %d attributes, %d byte image, %d indexed values\n",
				db.Len(), db.ImageLen(), s.Index().Len())
			for _, r := range s.Gaps() {
				fmt.Fprintf(out, "unbacked: 0x%04X %s\n", r.Handle, gattdb.UUIDName(r.UUID))
			}
			return nil
		},
	}
}

func decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "decode <file>",
		Short:   "Decode a raw database image and print its attribute table",
		Example: "  hrsdb image --raw > hrs.img && hrsdb decode hrs.img",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}
			db, err := gattdb.Decode(img)
			if err != nil {
				return err
			}
			return db.Dump(cmd.OutOrStdout())
		},
	}
}
