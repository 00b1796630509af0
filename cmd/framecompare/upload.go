package main

import (
	"github.com/spf13/cobra"

	"github.com/tendant/framecompare/pkg/compare"
)

var uploadOpts struct {
	show   string
	season int
	public bool
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Publish stills already under the output root",
	Long: `upload scans <output>/<name>/*.png, takes the tracks from the folder names and
the frames from the trailing _NNNNNN of each file, and publishes them as one comparison.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := compare.Request{
			Job: compare.JobUpload,
			Upload: &compare.UploadOptions{
				ShowName: uploadOpts.show,
				Season:   uploadOpts.season,
				Public:   uploadOpts.public,
			},
		}
		if err := req.Validate(); err != nil {
			return err
		}
		return execute(cmd, req)
	},
}

func init() {
	f := uploadCmd.Flags()
	f.StringVar(&uploadOpts.show, "show", "", "show or movie name used in the collection name")
	f.IntVar(&uploadOpts.season, "season", 0, "season number for the collection name")
	f.BoolVar(&uploadOpts.public, "public", false, "make the collection public")
	uploadCmd.MarkFlagRequired("show")
}
