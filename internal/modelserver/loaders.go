package modelserver

import (
	"time"

	"github.com/rs/zerolog"

	"iorganise/internal/config"
	"iorganise/internal/manager"
)

// Options configures the model server loaders.
type Options struct {
	WhisperBin    string
	LlamaBin      string
	ClassifierBin string

	Host         string
	PortStart    int
	PortEnd      int
	ReadyTimeout time.Duration
	Threads      int

	LlamaCtx       int
	LlamaInProcess bool
	LlamaExtraArgs []string
	// SummaryTokenBudget caps the text placed in the summary prompt.
	SummaryTokenBudget int

	Logger *zerolog.Logger
}

// OptionsFromConfig maps the models and pipeline sections to Options.
func OptionsFromConfig(cfg config.Config, log *zerolog.Logger) Options {
	rt := cfg.Models.Runtime
	return Options{
		WhisperBin:         rt.WhisperBin,
		LlamaBin:           rt.LlamaBin,
		ClassifierBin:      rt.ClassifierBin,
		Host:               rt.Host,
		PortStart:          rt.PortStart,
		PortEnd:            rt.PortEnd,
		ReadyTimeout:       config.Seconds(rt.ReadyTimeoutSec, defaultReadyTimeout),
		Threads:            rt.LlamaThreads,
		LlamaCtx:           rt.LlamaCtx,
		LlamaInProcess:     rt.LlamaInProcess,
		LlamaExtraArgs:     rt.ExtraArgs,
		SummaryTokenBudget: cfg.Pipeline.SummaryTokenBudget,
		Logger:             log,
	}
}

// Loaders returns one loader per model kind.
func Loaders(opts Options) map[manager.Kind]manager.Loader {
	return map[manager.Kind]manager.Loader{
		manager.KindASR:        whisperLoader{opts: opts},
		manager.KindLLM:        llamaLoader{opts: opts},
		manager.KindClassifier: classifierLoader{opts: opts},
	}
}

func (o Options) processConfig(name, bin string, args []string) ProcessConfig {
	return ProcessConfig{
		Name:         name,
		Bin:          bin,
		Args:         args,
		Host:         o.Host,
		PortStart:    o.PortStart,
		PortEnd:      o.PortEnd,
		ReadyTimeout: o.ReadyTimeout,
		Logger:       o.Logger,
	}
}
