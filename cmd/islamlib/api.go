package main

import (
	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/internal/server/endpoints"
)

func init() {
	reg := api.NewRegistry()
	for _, ep := range endpoints.All() {
		reg.Register(ep)
	}
	rootCmd.AddCommand(reg.BuildCommands(getServerURL))
}
