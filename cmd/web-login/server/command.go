package server

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/web-login/internal/business"
	"github.com/openkcm/web-login/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"server",
		"Web Login server",
		"Web Login server hosts the application behind the OpenID Connect login middleware",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
