package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"pkt.systems/s3wire"
	"pkt.systems/s3wire/internal/transport"
)

func insecureTransport() http.RoundTripper {
	return transport.New(transport.Config{InsecureSkipVerify: true})
}

func commandLogger(base pslog.Logger, flags *appFlags) pslog.Logger {
	if flags.verbose || flags.trace {
		return pslog.NewWithOptions(os.Stderr, pslog.Options{
			Mode:     pslog.ModeStructured,
			MinLevel: pslog.TraceLevel,
		}).With("app", "s3wire")
	}
	return base
}

// splitTarget parses BUCKET[/OBJECT] command arguments.
func splitTarget(arg string) (string, string) {
	parts := strings.SplitN(arg, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func newStatCommand(base pslog.Logger, flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stat BUCKET[/OBJECT]",
		Short: "HEAD a bucket or object and print its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := commandLogger(base, flags)
			client, err := buildClient(cmd.Context(), logger, flags)
			if err != nil {
				return err
			}
			bucket, object := splitTarget(args[0])
			resp, err := client.Execute(cmd.Context(), s3wire.Operation{
				Method: http.MethodHead,
				Bucket: bucket,
				Object: object,
			})
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return responseError(resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:         %d %s\n", resp.StatusCode, resp.Status)
			if n := resp.ContentLength(); n >= 0 {
				fmt.Fprintf(out, "size:           %s (%d bytes)\n", humanize.IBytes(uint64(n)), n)
			}
			for _, key := range []string{"Etag", "Content-Type", "Last-Modified"} {
				if v, ok := resp.Header[key]; ok {
					fmt.Fprintf(out, "%-15s %s\n", strings.ToLower(key)+":", v)
				}
			}
			return nil
		},
	}
}

func newGetCommand(base pslog.Logger, flags *appFlags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "get BUCKET/OBJECT",
		Short: "GET an object and write its body to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := commandLogger(base, flags)
			client, err := buildClient(cmd.Context(), logger, flags)
			if err != nil {
				return err
			}
			bucket, object := splitTarget(args[0])
			if object == "" {
				return fmt.Errorf("get requires BUCKET/OBJECT")
			}
			resp, err := client.Execute(cmd.Context(), s3wire.Operation{
				Method: http.MethodGet,
				Bucket: bucket,
				Object: object,
			})
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
				return responseError(resp)
			}
			var dst io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}
			if _, err := io.Copy(dst, resp.Body()); err != nil {
				return err
			}
			logger.Debug("s3wire.cli.get.done", "bucket", bucket, "object", object, "bytes", len(resp.Bytes()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the body to this file instead of stdout")
	return cmd
}

func newPutCommand(base pslog.Logger, flags *appFlags) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "put BUCKET/OBJECT [FILE]",
		Short: "PUT an object from a file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := commandLogger(base, flags)
			client, err := buildClient(cmd.Context(), logger, flags)
			if err != nil {
				return err
			}
			bucket, object := splitTarget(args[0])
			if object == "" {
				return fmt.Errorf("put requires BUCKET/OBJECT")
			}
			var data []byte
			if len(args) == 2 && args[1] != "-" {
				data, err = os.ReadFile(args[1])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			header := make(http.Header)
			if contentType != "" {
				header.Set("Content-Type", contentType)
			}
			resp, err := client.Execute(cmd.Context(), s3wire.Operation{
				Method:  http.MethodPut,
				Bucket:  bucket,
				Object:  object,
				Header:  header,
				Payload: s3wire.BytesPayload(data),
			})
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return responseError(resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s to %s/%s (etag %s)\n",
				humanize.IBytes(uint64(len(data))), bucket, object,
				strings.Trim(resp.Header["Etag"], `"`))
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "payload media type")
	return cmd
}

func newRemoveCommand(base pslog.Logger, flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm BUCKET/OBJECT",
		Short: "DELETE an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := commandLogger(base, flags)
			client, err := buildClient(cmd.Context(), logger, flags)
			if err != nil {
				return err
			}
			bucket, object := splitTarget(args[0])
			if object == "" {
				return fmt.Errorf("rm requires BUCKET/OBJECT")
			}
			resp, err := client.Execute(cmd.Context(), s3wire.Operation{
				Method: http.MethodDelete,
				Bucket: bucket,
				Object: object,
			})
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
				return responseError(resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s/%s\n", bucket, object)
			return nil
		},
	}
}

func newSignCommand(base pslog.Logger, flags *appFlags) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "sign BUCKET[/OBJECT]",
		Short: "Build and sign a request, print it, dispatch nothing",
		Long: "sign runs the pre-transport half of the pipeline - region and URL\n" +
			"resolution, header assembly and the signing invocation - and prints\n" +
			"the resulting request. Useful for debugging endpoint and signature\n" +
			"problems without touching the server.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := commandLogger(base, flags)
			client, err := buildClient(cmd.Context(), logger, flags)
			if err != nil {
				return err
			}
			bucket, object := splitTarget(args[0])
			req, err := client.Build(cmd.Context(), s3wire.Operation{
				Method: method,
				Bucket: bucket,
				Object: object,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", req.Method, req.URL.String())
			keys := make([]string, 0, len(req.Header))
			for k := range req.Header {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %s\n", k, strings.Join(req.Header[k], ","))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodHead, "HTTP method to sign")
	return cmd
}

func responseError(resp *s3wire.Response) error {
	if resp.StatusCode == s3wire.StatusTransportFailure {
		return fmt.Errorf("transport failure: %s", resp.Status)
	}
	if er, err := resp.DecodeError(); err == nil && er.Code != "" {
		return fmt.Errorf("%s: %s (status %d)", er.Code, er.Message, resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d %s", resp.StatusCode, resp.Status)
}
