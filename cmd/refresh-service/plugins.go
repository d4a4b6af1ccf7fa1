package main

import (
	"embedauth/pkg/config"
	"embedauth/pkg/plugins"
)

// builtin plugins are registered at startup in addition to the plugin
// directory; directory entries with the same slug replace them.
var builtin = plugins.StaticLoader{
	{
		Slug:         "host-demo",
		Name:         "Demo form (host identity)",
		Description:  "Embedded demo form refreshing against the host provider.",
		TokenRefresh: &plugins.TokenRefresh{OIDC: plugins.UseHostProvider{}},
	},
}

func pluginLoader(cfg config.Config) plugins.Loader {
	dir := plugins.DirLoader{Dir: cfg.PluginDir}
	if cfg.Env == "dev" {
		return plugins.MultiLoader{builtin, dir}
	}
	return dir
}
