package main

import (
	"sync"

	"github.com/gobeaver/vfskit"
	"github.com/sirupsen/logrus"
)

// app carries the registry shared by the commands of one process.
type app struct {
	drivesFile string
	logLevel   string
	copyBuffer int

	// mu serializes mount changes made by the card detector
	mu  sync.Mutex
	reg *vfskit.Registry
}

// registry builds the registry on first use. Drives that fail to mount are
// logged and left unmounted so that the others remain usable.
func (a *app) registry() (*vfskit.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}
	cfg, err := vfskit.GetConfig()
	if err != nil {
		return nil, err
	}
	if a.drivesFile != "" {
		cfg.DrivesFile = a.drivesFile
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.copyBuffer > 0 {
		cfg.CopyBuffer = a.copyBuffer
	}
	reg, err := vfskit.New(cfg)
	if reg == nil {
		return nil, err
	}
	if err != nil {
		logrus.WithError(err).Warn("some drives did not mount")
	}
	a.reg = reg
	return reg, nil
}

func (a *app) close() error {
	if a.reg == nil {
		return nil
	}
	err := a.reg.Close()
	a.reg = nil
	return err
}
