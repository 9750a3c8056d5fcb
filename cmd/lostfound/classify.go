package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/records"
)

var (
	classifyInput  string
	classifyOutput string
	classifyOutDir string
	classifyJSON   bool
	classifyCols   records.ParseOptions

	objectLabels []string
	objectText   string
	objectWidth  int
	objectHeight int

	suggestTop int
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text...]",
	Short: "Classify free text by catalog keywords",
	Long: `Classifies the given text, or every record of --input (CSV, TSV or one
item per line). Batch results are written to a CSV file.`,
	Example: `  lostfound classify 黒い革の財布
  lostfound classify --input items.csv --output results.csv`,
	RunE: runClassify,
}

var nameCmd = &cobra.Command{
	Use:   "name <item name>",
	Short: "Classify an item name by embedding similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, closeEmbedder := openEngine(cmd.Context())
		defer closeEmbedder()
		if !engine.SemanticAvailable() {
			logger.Warn("semantic classification unavailable; configure an embedder and run precompute")
		}
		return emit(engine.ClassifyName(cmd.Context(), strings.Join(args, " ")))
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <text>",
	Short: "List the catalog terms closest to text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, closeEmbedder := openEngine(cmd.Context())
		defer closeEmbedder()
		scores := engine.Suggest(cmd.Context(), strings.Join(args, " "), suggestTop)
		if classifyJSON {
			return json.NewEncoder(os.Stdout).Encode(scores)
		}
		if len(scores) == 0 {
			fmt.Println("no suggestions")
			return nil
		}
		for i, s := range scores {
			fmt.Printf("%d. %s (%.3f)\n", i+1, s.Term, s.Similarity)
		}
		return nil
	},
}

var objectsCmd = &cobra.Command{
	Use:   "objects",
	Short: "Classify from detector labels and extracted text",
	Example: `  lostfound objects --label umbrella:0.82 --label person:0.9
  lostfound objects --text "SUICA" --width 640 --height 400`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		objs, err := parseObjectFlags(objectLabels)
		if err != nil {
			return err
		}
		engine, _, closeEmbedder := openEngine(cmd.Context())
		defer closeEmbedder()
		ev := classifier.ImageEvidence{
			Objects:       objs,
			ExtractedText: objectText,
			Width:         objectWidth,
			Height:        objectHeight,
		}
		if features, _ := classifier.AssembleFeatures(ev); features != "" && !classifyJSON {
			fmt.Printf("features: %s\n", features)
		}
		return emit(engine.ClassifyImage(cmd.Context(), ev))
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyInput, "input", "i", "", "CSV/TSV/text file of items to classify")
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "", "CSV file for batch results (default --output-dir/result_*.csv)")
	classifyCmd.Flags().StringVar(&classifyOutDir, "output-dir", "csv", "directory for batch results when --output is omitted")
	classifyCmd.Flags().StringVar(&classifyCols.IDColumn, "id-column", "", "column name or #n holding the item id")
	classifyCmd.Flags().StringVar(&classifyCols.NameColumn, "name-column", "", "column name or #n holding the item name")
	classifyCmd.Flags().StringVar(&classifyCols.FeaturesColumn, "features-column", "", "column name or #n holding the item features")
	classifyCmd.Flags().StringVar(&classifyCols.TextColumn, "text-column", "", "column name or #n holding free text")

	for _, c := range []*cobra.Command{classifyCmd, nameCmd, suggestCmd, objectsCmd} {
		c.Flags().BoolVar(&classifyJSON, "json", false, "print JSON instead of a summary")
	}
	suggestCmd.Flags().IntVarP(&suggestTop, "top", "n", 0, "number of suggestions (default semantic.topN)")

	objectsCmd.Flags().StringArrayVarP(&objectLabels, "label", "l", nil, "detected object as label:confidence (repeatable)")
	objectsCmd.Flags().StringVar(&objectText, "text", "", "text read from the item")
	objectsCmd.Flags().IntVar(&objectWidth, "width", 0, "image width in pixels")
	objectsCmd.Flags().IntVar(&objectHeight, "height", 0, "image height in pixels")
}

func runClassify(cmd *cobra.Command, args []string) error {
	if classifyInput == "" && len(args) == 0 {
		return errors.New("give text to classify or --input FILE")
	}
	engine, _, closeEmbedder := openEngine(cmd.Context())
	defer closeEmbedder()

	if classifyInput == "" {
		return emit(engine.ClassifyText(strings.Join(args, " ")))
	}

	recs, err := records.ParseFile(classifyInput, classifyCols)
	if err != nil {
		return fmt.Errorf("read input records: %w", err)
	}
	if len(recs) == 0 {
		return errors.New("input file does not contain any items")
	}
	start := time.Now()
	results := make([]records.Result, len(recs))
	matched := 0
	for i, rec := range recs {
		results[i] = records.Result{Record: rec, Result: engine.ClassifyText(rec.Text)}
		if !results[i].Result.IsFallback() {
			matched++
		}
	}
	logger.Info("batch classified",
		zap.Int("records", len(recs)),
		zap.Int("matched", matched),
		zap.Duration("took", time.Since(start)))

	outPath, err := records.ResolveOutputPath(classifyOutput, classifyOutDir, time.Now())
	if err != nil {
		return err
	}
	if err := records.WriteCSVFile(outPath, results); err != nil {
		return err
	}
	if classifyJSON {
		return json.NewEncoder(os.Stdout).Encode(results)
	}
	printResultTable(os.Stdout, results)
	fmt.Printf("\n%d/%d items categorized; results saved to %s\n", matched, len(recs), outPath)
	return nil
}

func emit(res classifier.ClassificationResult) error {
	if classifyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(os.Stdout, res)
	return nil
}

// parseObjectFlags reads "label:confidence" pairs. A bare label means
// confidence 1.
func parseObjectFlags(values []string) ([]classifier.DetectedObject, error) {
	objs := make([]classifier.DetectedObject, 0, len(values))
	for _, v := range values {
		label, conf, found := strings.Cut(v, ":")
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("invalid --label %q", v)
		}
		obj := classifier.DetectedObject{Label: label, Confidence: 1}
		if found {
			c, err := strconv.ParseFloat(strings.TrimSpace(conf), 64)
			if err != nil || c < 0 || c > 1 {
				return nil, fmt.Errorf("invalid confidence in --label %q", v)
			}
			obj.Confidence = c
		}
		objs = append(objs, obj)
	}
	return objs, nil
}
