package cmd

import (
	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/log"
	"github.com/urfave/cli"
)

var logger = log.New("grape")

// Load the training options pointed to by --config and apply the requested
// verbosity. The -v and -vv flags override the configured log level.
func setupLogging(ctx *cli.Context) (config.Training, error) {
	opts, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return opts, err
	}

	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		return opts, err
	}
	log.SetLevel(level)

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}

	return opts, nil
}
