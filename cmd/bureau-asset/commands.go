// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/assets/lib/asset"
)

func downloadCommand() *Command {
	var (
		conn   connection
		output string
	)
	return &Command{
		Name:    "download",
		Summary: "Fetch a file by path",
		Usage:   "bureau-asset download <path> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("download", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: bureau-asset download <path>")
			}
			client, err := conn.Client()
			if err != nil {
				return err
			}

			var destination io.Writer = os.Stdout
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()
				destination = file
			}

			written, err := downloadFile(context.Background(), client, args[0], destination, newProgress(os.Stderr, "downloading"))
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(os.Stderr, "%s  %s\n", output, humanize.IBytes(written))
			}
			return nil
		},
	}
}

// downloadFile resolves remotePath through the service's delivery
// engine and follows continuation tokens until the file is complete.
func downloadFile(ctx context.Context, client caller, remotePath string, destination io.Writer, progress *progress) (uint64, error) {
	var response asset.Response
	err := client.Call(ctx, "http-request", map[string]any{
		"url":    (&url.URL{Path: remotePath}).EscapedPath(),
		"method": http.MethodGet,
	}, &response)
	if err != nil {
		return 0, err
	}
	if response.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s: %d %s", remotePath, response.StatusCode, strings.TrimSpace(string(response.Body)))
	}

	total := uint64(len(response.Body))
	if end, err := strconv.ParseUint(response.Token["end"], 10, 64); err == nil {
		total = end
	}
	progress.Start(total)
	defer progress.Finish()

	written := uint64(0)
	body, token := response.Body, response.Token
	for {
		n, err := destination.Write(body)
		written += uint64(n)
		if err != nil {
			return written, err
		}
		progress.Add(uint64(n))
		if token == nil {
			break
		}

		var next asset.StreamingResponse
		if err := client.Call(ctx, "http-streaming", map[string]any{"token": token}, &next); err != nil {
			return written, err
		}
		if len(next.Body) == 0 {
			return written, fmt.Errorf("%s changed during download after %s", remotePath, humanize.IBytes(written))
		}
		body, token = next.Body, next.Token
	}
	return written, nil
}

func listCommand() *Command {
	var (
		conn       connection
		outputJSON bool
	)
	return &Command{
		Name:    "list",
		Summary: "List stored files",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			client, err := conn.Client()
			if err != nil {
				return err
			}
			var files []asset.FileInfo
			if err := client.Call(context.Background(), "list", nil, &files); err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(os.Stdout, files)
			}
			return printFiles(os.Stdout, files, time.Now())
		},
	}
}

// printFiles writes one row per file: path, size, age and a short
// hash.
func printFiles(w io.Writer, files []asset.FileInfo, now time.Time) error {
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PATH\tSIZE\tMODIFIED\tHASH\n")
	for _, file := range files {
		hash := file.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", file.Path, humanize.IBytes(file.Size),
			humanize.RelTime(file.ModifiedAt, now, "ago", "from now"), hash)
	}
	return tw.Flush()
}

func uploadsCommand() *Command {
	var conn connection
	return &Command{
		Name:    "uploads",
		Summary: "List partially received uploads",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("uploads", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			client, err := conn.Client()
			if err != nil {
				return err
			}
			var uploads []asset.UploadStatus
			if err := client.Call(context.Background(), "uploads", nil, &uploads); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "PATH\tSIZE\tCHUNKS\n")
			for _, upload := range uploads {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\n", upload.Path, humanize.IBytes(upload.Size),
					upload.ReceivedChunks, upload.Chunks)
			}
			return tw.Flush()
		},
	}
}

func deleteCommand() *Command {
	var conn connection
	return &Command{
		Name:    "delete",
		Summary: "Delete files and cancel their in-flight uploads",
		Usage:   "bureau-asset delete <path>... [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: bureau-asset delete <path>...")
			}
			client, err := conn.Client()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), "delete", map[string]any{"paths": args}, nil)
		},
	}
}

func trustCommand() *Command {
	var conn connection
	return &Command{
		Name:    "trust",
		Summary: "Show or set the upload trust flag",
		Usage:   "bureau-asset trust [on|off] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("trust", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			client, err := conn.Client()
			if err != nil {
				return err
			}
			return runTrust(context.Background(), client, args, os.Stdout)
		},
	}
}

func runTrust(ctx context.Context, client caller, args []string, w io.Writer) error {
	switch {
	case len(args) == 0:
		var result struct {
			Trusted bool `cbor:"trusted"`
		}
		if err := client.Call(ctx, "trust", nil, &result); err != nil {
			return err
		}
		if result.Trusted {
			fmt.Fprintln(w, "on")
		} else {
			fmt.Fprintln(w, "off")
		}
		return nil
	case len(args) == 1 && (args[0] == "on" || args[0] == "off"):
		return client.Call(ctx, "set-trust", map[string]any{"trusted": args[0] == "on"}, nil)
	default:
		return fmt.Errorf("usage: bureau-asset trust [on|off]")
	}
}

func statusCommand() *Command {
	var conn connection
	return &Command{
		Name:    "status",
		Summary: "Show service status",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			client, err := conn.Client()
			if err != nil {
				return err
			}
			var status struct {
				UptimeSeconds float64     `cbor:"uptime_seconds" json:"uptime_seconds"`
				Version       string      `cbor:"version" json:"version"`
				Stats         asset.Stats `cbor:"stats" json:"stats"`
			}
			if err := client.Call(context.Background(), "status", nil, &status); err != nil {
				return err
			}
			return writeJSON(os.Stdout, status)
		},
	}
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
