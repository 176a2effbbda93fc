package tokenrefresh

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/web-login/internal/business"
	"github.com/openkcm/web-login/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"token-refresher",
		"Web Login Token Refresh job",
		"Web Login Token Refresh job refreshes access tokens of stored sessions",
		buildInfo,
		cmdutils.RunAsService,
		business.TokenRefresherMain,
	)
}
