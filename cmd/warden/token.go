package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiremeet-warden/internal/auth"
	"github.com/vovakirdan/wiremeet-warden/internal/config"
	"github.com/vovakirdan/wiremeet-warden/internal/log"
)

var (
	flagTokenName string
	flagTokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootLog := log.New("warn")
		cfg, _, err := config.Load(bootLog, flagConfig)
		if err != nil {
			return err
		}

		jwtConfig := &auth.JWTConfig{
			Secret:   []byte(cfg.Admin.JWTSecret),
			Issuer:   cfg.Admin.JWTIssuer,
			Audience: cfg.Admin.JWTAudience,
			TTL:      cfg.Admin.JWTTTL,
		}
		if flagTokenTTL > 0 {
			jwtConfig.TTL = flagTokenTTL
		}

		token, err := auth.NewService(jwtConfig).IssueToken(flagTokenName)
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagTokenName, "name", "", "operator name recorded in the token")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", 0, "token lifetime override")
	_ = tokenCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(tokenCmd)
}
