// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/marcinbor85/gohex"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/puppetflash/pkg/fwupdate"
)

var infoCmd = &cobra.Command{
	Use:   "info <image.hex>",
	Short: "Summarize an Intel HEX image without sending it",
	Long: `Parse an Intel HEX image and print what an update would send.

Shows the number of records streamed, the bytes written to UPDATE_CHANNEL,
the number of status polls, and the memory segments the image covers.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// imageSummary describes an image from both the streaming and the memory view
type imageSummary struct {
	Path       string
	Records    int
	WireBytes  int
	Polls      int
	Segments   []gohex.DataSegment
	DataBytes  int
	StartAddr  uint32
	HasStart   bool
	ParseError error
}

func summarizeImage(path string, pollEvery int) (imageSummary, error) {
	img, err := fwupdate.LoadImage(path)
	if err != nil {
		return imageSummary{}, err
	}

	s := imageSummary{
		Path:      path,
		Records:   img.Len(),
		WireBytes: img.WireBytes(),
	}
	if pollEvery > 0 {
		s.Polls = img.Len() / pollEvery
	}

	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		// the target validates records itself; still report the stream view
		s.ParseError = err
		return s, nil
	}

	s.Segments = mem.GetDataSegments()
	for _, seg := range s.Segments {
		s.DataBytes += len(seg.Data)
	}
	s.StartAddr, s.HasStart = mem.GetStartAddress()
	return s, nil
}

func printImageSummary(w io.Writer, s imageSummary) {
	fmt.Fprintf(w, "Image: %s\n", s.Path)
	fmt.Fprintf(w, "Records:       %d\n", s.Records)
	fmt.Fprintf(w, "Stream bytes:  %d\n", s.WireBytes)
	fmt.Fprintf(w, "Status polls:  %d\n", s.Polls)

	if s.ParseError != nil {
		fmt.Fprintf(w, "\nWARNING: not a valid Intel HEX image: %v\n", s.ParseError)
		return
	}

	fmt.Fprintf(w, "Data bytes:    %d\n", s.DataBytes)
	if s.HasStart {
		fmt.Fprintf(w, "Start address: 0x%08X\n", s.StartAddr)
	}
	fmt.Fprintf(w, "\nSegments (%d):\n", len(s.Segments))
	for i, seg := range s.Segments {
		end := seg.Address + uint32(len(seg.Data))
		fmt.Fprintf(w, "  %d: 0x%08X - 0x%08X (%d bytes)\n", i, seg.Address, end, len(seg.Data))
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := summarizeImage(args[0], cfg.Update.PollEvery)
	if err != nil {
		return exitWith(ExitFailure, err)
	}
	printImageSummary(cmd.OutOrStdout(), s)
	return nil
}
