package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/clients/blockchain/jsonrpc"
	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/controller/ethereum/handler"
	"github.com/coinbase/chaingateway/internal/utils/jsonutil"
)

var (
	routeFlags struct {
		method string
		params string
	}

	// routeCommand replays the dispatch logic for a single call without
	// contacting any upstream.
	routeCommand = NewCommand("route", func() error {
		app, err := NewApp()
		if err != nil {
			return xerrors.Errorf("failed to create command: %w", err)
		}
		defer app.Close()

		if !app.Config.Gateway.Enabled {
			fmt.Println(color.YellowString("routing is disabled for this network; every method is served by the node"))
		}

		decision := handler.ExplainRoute(
			app.Config.Gateway.CutoffBlock,
			routeFlags.method,
			json.RawMessage(routeFlags.params),
		)

		destination := string(decision.Destination)
		switch decision.Destination {
		case handler.RouteNode:
			destination = color.GreenString(destination)
		case handler.RouteLegacy:
			destination = color.YellowString(destination)
		case handler.RouteRejected:
			destination = color.RedString(destination)
		default:
			destination = color.CyanString(destination)
		}

		fmt.Printf("method:      %v\n", decision.Method)
		fmt.Printf("category:    %v\n", decision.Category)
		fmt.Printf("cutoff:      %v\n", app.Config.Gateway.CutoffBlock)
		fmt.Printf("destination: %v\n", destination)
		fmt.Printf("reason:      %v\n", decision.Reason)
		return nil
	})

	callFlags struct {
		target  string
		method  string
		params  string
		timeout time.Duration
	}

	// callCommand issues a one-off request to the chosen upstream,
	// bypassing the routing logic.
	callCommand = NewCommand("call", func() error {
		var deps struct {
			fx.In
			NodeClient   jsonrpc.Client `name:"node"`
			LegacyClient jsonrpc.Client `name:"legacy"`
			ServerClient jsonrpc.Client `name:"server"`
		}

		app, err := NewApp(fx.Populate(&deps))
		if err != nil {
			return xerrors.Errorf("failed to create command: %w", err)
		}
		defer app.Close()

		var client jsonrpc.Client
		switch callFlags.target {
		case "node":
			client = deps.NodeClient
		case "legacy":
			client = deps.LegacyClient
		case "server":
			client = deps.ServerClient
		default:
			return xerrors.Errorf("unknown target %v: expected one of node, legacy, server", callFlags.target)
		}

		if app.Config.Env() == config.EnvProduction {
			if !app.Confirm(fmt.Sprintf("Send %v to the %v endpoint?", callFlags.method, callFlags.target)) {
				return nil
			}
		}

		method := &jsonrpc.RequestMethod{
			Name:    callFlags.method,
			Timeout: callFlags.timeout,
		}

		response, err := client.CallRaw(app.Context(), method, json.RawMessage(callFlags.params))
		if err != nil {
			return xerrors.Errorf("failed to call %v: %w", callFlags.target, err)
		}

		if response.Error != nil {
			return xerrors.Errorf("received rpc error: %w", response.Error)
		}

		var result interface{}
		if err := response.Unmarshal(&result); err != nil {
			return xerrors.Errorf("failed to unmarshal result: %w", err)
		}

		output, err := jsonutil.FormatJSON(result)
		if err != nil {
			return xerrors.Errorf("failed to format result: %w", err)
		}

		fmt.Println(output)
		return nil
	})
)

func init() {
	rootCommand.AddCommand(routeCommand)
	rootCommand.AddCommand(callCommand)

	routeCommand.StringVar(&routeFlags.method, "method", "", true)
	routeCommand.StringVar(&routeFlags.params, "params", "[]", false)

	callCommand.StringVar(&callFlags.target, "target", "node", false)
	callCommand.StringVar(&callFlags.method, "method", "", true)
	callCommand.StringVar(&callFlags.params, "params", "[]", false)
	callCommand.DurationVar(&callFlags.timeout, "timeout", time.Second*10, false)
}
