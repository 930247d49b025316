// Package main is the sensord agent: it loads a task list, spins up the sampling
// workers and serves the controller configuration link.
package main

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.viam.com/utils"

	"go.viam.com/sensord/logging"
	"go.viam.com/sensord/sensors"
	"go.viam.com/sensord/sensors/fake"
	"go.viam.com/sensord/taskmanager"
	"go.viam.com/sensord/transport"
)

var logger = logging.NewLogger("sensord")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	TaskFile string `flag:"tasks,usage=JSON task list loaded at startup"`
	Listen   string `flag:"listen,usage=TCP address serving controller config sessions"`
	LogFile  string `flag:"logfile,usage=mirror logs into this rotating file"`
	Debug    bool   `flag:"debug,usage=enable debug logging"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.TaskFile == "" && argsParsed.Listen == "" {
		return errors.New("nothing to do; pass -tasks and/or -listen")
	}

	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
		logging.GlobalLogLevel.SetLevel(zap.DebugLevel)
	}
	if argsParsed.LogFile != "" {
		fileAppender := logging.NewFileAppender(argsParsed.LogFile)
		logger.AddAppender(fileAppender)
		defer func() {
			err = multierr.Combine(err, fileAppender.Close())
		}()
	}

	// Real deployments swap these for hardware-backed drivers; the agent itself only
	// assumes the driver interfaces.
	station := sensors.NewStation(sensors.StationConfig{
		Climate: fake.NewClimate(),
		Range:   fake.NewRangefinder(),
		Motion:  fake.NewMotion(),
	}, logger)
	if err := station.Setup(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, station.Close(context.Background()))
	}()

	registry := taskmanager.NewRegistry(station, logger)
	defer registry.StopAll()

	if argsParsed.TaskFile != "" {
		list, err := taskmanager.ReadTaskListFromFile(argsParsed.TaskFile)
		if err != nil {
			return err
		}
		created := registry.CreateTasks(ctx, list)
		logger.Infow("loaded task list", "path", argsParsed.TaskFile, "created", created)
	}

	if argsParsed.Listen == "" {
		<-ctx.Done()
		return nil
	}

	lis, err := net.Listen("tcp", argsParsed.Listen)
	if err != nil {
		return err
	}
	logger.Infow("serving config sessions", "address", lis.Addr().String())

	return transport.NewServer(registry, logger).Serve(ctx, lis)
}
