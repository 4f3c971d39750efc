package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/studyspace/internal/auth"
	"github.com/thywilljoshua/studyspace/internal/recent"
)

func recentCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently opened documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.openStore(); err != nil {
				return err
			}
			list := recent.NewTracker(a.store).List(cmd.Context())
			if list == nil {
				list = []recent.Entry{}
			}
			b, _ := json.MarshalIndent(list, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func tokenCmd(cfgPath *string) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the chat endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			iss, err := auth.NewIssuer(a.cfg.Auth.Secret, a.cfg.Auth.TTL)
			if err != nil {
				return err
			}
			tok, err := iss.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "student", "token subject")
	return cmd
}

func scanCmd(cfgPath *string) *cobra.Command {
	var refine string
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Classify the text in an image into problem and prompt parts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			gw := a.gateway()
			out := cmd.OutOrStdout()

			if refine != "" {
				text, err := gw.Refine(cmd.Context(), refine)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
				return nil
			}
			if len(args) == 0 {
				return errors.New("scan needs an image path or --refine")
			}
			img, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mt := mime.TypeByExtension(filepath.Ext(args[0]))
			if mt == "" {
				mt = "image/png"
			}
			res, err := gw.ScanImage(cmd.Context(), img, mt)
			if err != nil {
				return err
			}
			b, _ := json.MarshalIndent(res, "", "  ")
			fmt.Fprintln(out, string(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&refine, "refine", "", "rewrite this text into a full prompt instead of scanning")
	return cmd
}
