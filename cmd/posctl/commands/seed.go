package commands

import (
	"fmt"

	"brewpos/internal/migrate"
	managerrepo "brewpos/internal/repository/manager"
	productrepo "brewpos/internal/repository/product"
	"brewpos/internal/seed"
	authsvc "brewpos/internal/service/auth"
	"github.com/spf13/cobra"
)

var managerFullName string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the starter menu and the manager account",
	Long: `Apply migrations, upsert the starter menu and enroll the manager
named by MANAGER_USERNAME with MANAGER_PASSWORD. Safe to run repeatedly.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&managerFullName, "manager-name", "Big Brew Admin", "Full name stored on the manager account")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := migrate.Apply(ctx, rt.pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	auth := authsvc.New(managerrepo.NewPostgres(rt.pool, rt.logger), rt.logger)
	err = seed.Apply(ctx, productrepo.NewPostgres(rt.pool, rt.logger), auth, seed.Manager{
		Username: rt.cfg.ManagerUsername,
		FullName: managerFullName,
		Password: rt.cfg.ManagerPassword,
	}, rt.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d menu items\n", len(seed.Menu))
	return nil
}
