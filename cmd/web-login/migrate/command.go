package migrate

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/web-login/internal/business"
	"github.com/openkcm/web-login/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Web Login migrations",
		"Web Login migrations create the sessions schema for the postgres session store",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
