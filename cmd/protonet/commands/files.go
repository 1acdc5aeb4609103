// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/protoclient/cmd/protonet/cli"
	"github.com/bureau-foundation/protoclient/lib/codec"
	"github.com/bureau-foundation/protoclient/messaging"
)

type uploadParams struct {
	listParams
	ContentType string `flag:"content-type" desc:"MIME type (default: from the extension, else sniffed)"`
}

func uploadCommand() *cli.Command {
	var params uploadParams
	return &cli.Command{
		Name:    "upload",
		Summary: "Send a file as a message",
		Usage:   "protonet upload <meeps-url> <path> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("upload", &params) },
		Run: func(args []string) error {
			if len(args) != 2 {
				return cli.Usage("meeps-url and path are required\n\nUsage: protonet upload <meeps-url> <path>")
			}
			locator, path := args[0], args[1]
			output, err := newOutput(params.Format)
			if err != nil {
				return err
			}

			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			reader := bufio.NewReader(file)
			contentType, err := detectContentType(path, params.ContentType, reader)
			if err != nil {
				return err
			}

			env, err := params.openSession()
			if err != nil {
				return err
			}
			defer env.Close()

			meep, err := env.client.CreateFileMeep(env.ctx, locator, contentType, reader)
			if err != nil {
				return err
			}
			if meep == nil {
				return env.expired()
			}
			if done, err := output.Emit(meep); done {
				return err
			}
			renderMeeps(output, []messaging.Meep{*meep})
			return nil
		},
	}
}

// detectContentType prefers explicit, then the extension, then the
// first 512 bytes of reader, which stay buffered for the upload.
func detectContentType(path, explicit string, reader *bufio.Reader) (string, error) {
	if explicit != "" {
		if _, _, err := mime.ParseMediaType(explicit); err != nil {
			return "", cli.Usage("invalid --content-type %q: %v", explicit, err)
		}
		return explicit, nil
	}
	if byExtension := mime.TypeByExtension(filepath.Ext(path)); byExtension != "" {
		return byExtension, nil
	}
	head, err := reader.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return http.DetectContentType(head), nil
}

type downloadParams struct {
	Global
	Output string `flag:"output,o" desc:"destination file, or - for stdout" default:"-"`
}

func downloadCommand() *cli.Command {
	var params downloadParams
	return &cli.Command{
		Name:    "download",
		Summary: "Download a message attachment",
		Usage:   "protonet download <file-url> [flags]",
		Description: `Stream an attachment to a file or stdout and print its size and
BLAKE3 digest on stderr. A download the box refuses (401) does not end
the session.`,
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("download", &params) },
		Run: func(args []string) error {
			locator, err := singleLocator(args, "file-url")
			if err != nil {
				return err
			}
			env, err := params.openSession()
			if err != nil {
				return err
			}
			defer env.Close()

			stream, err := env.client.DownloadStream(env.ctx, locator)
			if err != nil {
				return err
			}
			if stream == nil {
				fmt.Fprintln(stderr, "Download refused by the box.")
				return &cli.ExitError{Code: cli.ExitUnauthorized}
			}
			defer stream.Close()

			destination, finish, err := openDestination(params.Output)
			if err != nil {
				return err
			}
			hasher := blake3.New()
			size, copyErr := io.Copy(io.MultiWriter(destination, hasher), stream)
			if err := finish(copyErr); err != nil {
				return err
			}

			fmt.Fprintf(stderr, "%d bytes blake3:%s\n", size, hex.EncodeToString(hasher.Sum(nil)))
			return nil
		},
	}
}

// openDestination returns the writer for path and a func that closes it.
// A partial file is removed when the copy failed.
func openDestination(path string) (io.Writer, func(error) error, error) {
	if path == "" || path == "-" {
		return stdout, func(copyErr error) error { return copyErr }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func(copyErr error) error {
		closeErr := file.Close()
		if copyErr != nil {
			os.Remove(path)
			return copyErr
		}
		return closeErr
	}, nil
}

// Archive is the content of an export file.
type Archive struct {
	Source     string           `json:"source"`
	ExportedAt time.Time        `json:"exported_at"`
	Meeps      []messaging.Meep `json:"meeps"`
}

type exportParams struct {
	Global
	Output string `flag:"output,o" desc:"archive path (zstd-compressed CBOR)"`
}

func exportCommand() *cli.Command {
	var params exportParams
	return &cli.Command{
		Name:    "export",
		Summary: "Archive a conversation to a compressed CBOR file",
		Usage:   "protonet export <meeps-url> -o <archive> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("export", &params) },
		Run: func(args []string) error {
			locator, err := singleLocator(args, "meeps-url")
			if err != nil {
				return err
			}
			if params.Output == "" {
				return cli.Usage("--output is required")
			}
			env, err := params.openSession()
			if err != nil {
				return err
			}
			defer env.Close()

			meeps, err := env.client.GetChatMeeps(env.ctx, locator)
			if err != nil {
				return err
			}
			if meeps == nil && !env.client.Authenticated() {
				return env.expired()
			}

			archive := Archive{Source: locator, ExportedAt: time.Now().UTC(), Meeps: meeps}
			if err := writeArchive(params.Output, &archive); err != nil {
				return err
			}
			fmt.Fprintf(stderr, "Exported %d meeps to %s\n", len(meeps), params.Output)
			return nil
		},
	}
}

func writeArchive(path string, archive *Archive) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		file.Close()
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	if err := codec.NewEncoder(encoder).Encode(archive); err != nil {
		encoder.Close()
		file.Close()
		return fmt.Errorf("encoding archive: %w", err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("compressing archive: %w", err)
	}
	return file.Close()
}

// ReadArchive decodes an export file.
func ReadArchive(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	var archive Archive
	if err := codec.NewDecoder(decoder).Decode(&archive); err != nil {
		return nil, fmt.Errorf("decoding archive %s: %w", path, err)
	}
	return &archive, nil
}

type archiveParams struct {
	Format   string `flag:"format" desc:"output format: text, json or cbor" default:"text"`
	Diagnose bool   `flag:"diagnose" desc:"print the CBOR diagnostic notation of the archive"`
}

func archiveCommand() *cli.Command {
	var params archiveParams
	return &cli.Command{
		Name:    "archive",
		Summary: "Show the messages in an export file",
		Usage:   "protonet archive <path> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("archive", &params) },
		Run: func(args []string) error {
			path, err := singleLocator(args, "path")
			if err != nil {
				return err
			}
			output, err := newOutput(params.Format)
			if err != nil {
				return err
			}
			archive, err := ReadArchive(path)
			if err != nil {
				return err
			}
			if params.Diagnose {
				encoded, err := codec.Marshal(archive)
				if err != nil {
					return err
				}
				notation, err := codec.Diagnose(encoded)
				if err != nil {
					return err
				}
				output.Printf("%s\n", notation)
				return nil
			}
			if done, err := output.Emit(archive); done {
				return err
			}
			output.Printf("%s\n", output.Styles.Muted.Render(fmt.Sprintf("%s, exported %s", archive.Source, archive.ExportedAt.Format(time.RFC3339))))
			renderMeeps(output, archive.Meeps)
			return nil
		},
	}
}
