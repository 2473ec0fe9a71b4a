package main

import (
	"fmt"
	"io"
	"time"

	"lyricdesk/internal/app"
	"lyricdesk/internal/login"
	"lyricdesk/pkg/netease"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var (
	loginTimeout time.Duration
	invertQR     bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "log in to netease cloud music by scanning a qr code",
	Long: `requests a qr login key from the NeteaseCloudMusicApi proxy, renders the
qr code in the terminal and waits until it is scanned and confirmed in the
mobile app. the resulting cookie is saved to the configured credential store.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "remove the saved netease credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		deps, err := app.NewDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := app.Logout(ctx, deps); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 0, "give up after this long (default from config)")
	loginCmd.Flags().BoolVarP(&invertQR, "invert", "i", false, "invert qr colors for light terminals")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if loginTimeout > 0 {
		cfg.Login.Timeout = loginTimeout
	}

	deps, err := app.NewDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	out := cmd.OutOrStdout()
	observe := func(s login.Session) {
		switch s.State {
		case login.Pending:
			url := netease.QRLoginURL(s.Key)
			if err := renderQR(out, url, invertQR); err != nil {
				fmt.Fprintf(out, "open this url on your phone: %s\n", url)
			}
			fmt.Fprintln(out, "scan the qr code with the netease cloud music app")
		case login.AwaitingScan:
			fmt.Fprintln(out, "waiting for scan...")
		case login.Scanned:
			fmt.Fprintln(out, "scanned, confirm the login on your phone")
		}
	}

	s, err := app.Login(ctx, cfg, deps, observe)
	if err != nil {
		return fmt.Errorf("login %s: %w", s.State, err)
	}
	fmt.Fprintln(out, "login confirmed")
	return nil
}

// renderQR 用 ANSI 背景色块在终端画二维码，每个模块占两列
func renderQR(w io.Writer, text string, invert bool) error {
	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("generating qr code: %w", err)
	}

	dark, light := "\033[40m  \033[0m", "\033[47m  \033[0m"
	if invert {
		dark, light = light, dark
	}

	for _, row := range qr.Bitmap() {
		for _, set := range row {
			if set {
				io.WriteString(w, dark)
			} else {
				io.WriteString(w, light)
			}
		}
		io.WriteString(w, "\033[0m\n")
	}
	return nil
}
