// Command reporter submits a citizen issue from the command line: it
// captures evidence from local files and flags, asks the classifier for
// a category suggestion, and posts the submission to the upload relay.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/civitas-labs/issue-relay/internal/classifier"
	"github.com/civitas-labs/issue-relay/internal/config"
	"github.com/civitas-labs/issue-relay/internal/credstore"
	"github.com/civitas-labs/issue-relay/internal/report"
	"github.com/civitas-labs/issue-relay/internal/submit"
)

func main() {
	config.LoadConfig()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "signin":
		err = runSignin(os.Args[2:])
	case "submit":
		err = runSubmit(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  reporter signin -email <email> -password <password>
  reporter submit -image <file> [-audio <file>] [-text <description>]
                  [-category <label>] -lat <latitude> -lon <longitude>
                  [-address <address>]`)
}

func runSignin(args []string) error {
	fs := flag.NewFlagSet("signin", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	if *email == "" || *password == "" {
		return fmt.Errorf("email and password are required")
	}

	body, _ := json.Marshal(map[string]string{"email": *email, "password": *password})
	resp, err := http.Post(config.AppConfig.RelayURL+"/api/auth/signin", "application/json",
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Session *struct {
			AccessToken string `json:"access_token"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Session == nil {
		if out.Error != "" {
			return fmt.Errorf("sign-in failed: %s", out.Error)
		}
		return fmt.Errorf("sign-in failed with status %d", resp.StatusCode)
	}

	if err := credstore.Default().Save(out.Session.AccessToken); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Println(out.Message)
	return nil
}

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	image := fs.String("image", "", "path to the photo of the issue (required)")
	audio := fs.String("audio", "", "path to a voice note")
	text := fs.String("text", "", "free-text description")
	category := fs.String("category", "", "issue category; left empty, the classifier's suggestion is used")
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	address := fs.String("address", "", "human-readable address")
	hasLat := false
	hasLon := false
	fs.Parse(args)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			hasLat = true
		case "lon":
			hasLon = true
		}
	})

	ctx := context.Background()

	draft := submit.Draft{
		ImagePath: *image,
		AudioPath: *audio,
		Text:      *text,
		Category:  *category,
	}
	if hasLat && hasLon {
		draft.Location = &submit.Location{Latitude: *lat, Longitude: *lon, Address: *address}
	}

	// Classification is best-effort: a failed prediction only means the
	// category has to come from the -category flag.
	if draft.Category == "" && config.AppConfig.ClassifierURL != "" && draft.ImagePath != "" {
		prediction, err := classify(ctx, draft.ImagePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "classification failed:", err)
		} else {
			draft.Category = prediction.PredictedClass
			draft.Confidence = prediction.Confidence
			fmt.Printf("classifier suggests %q (confidence %.2f)\n",
				prediction.PredictedClass, prediction.Confidence)
		}
	}

	submitter := submit.NewSubmitter(config.AppConfig.RelayURL, credstore.Default())
	record, err := submitter.Submit(ctx, draft)
	if err != nil {
		return err
	}

	fmt.Printf("issue submitted: id=%s category=%s department=%s status=%s\n",
		record.ID, record.Category, record.Department, record.EffectiveStatus())
	if record.ImageURL != "" {
		fmt.Println("image:", record.ImageURL)
	}
	return nil
}

func classify(ctx context.Context, imagePath string) (classifier.Prediction, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return classifier.Prediction{}, err
	}
	defer f.Close()

	client := classifier.NewClient(config.AppConfig.ClassifierURL)
	prediction, err := client.Classify(ctx, imagePath, f)
	if err != nil {
		return classifier.Prediction{}, err
	}
	if report.NormalizeCategory(prediction.PredictedClass) == "" {
		return classifier.Prediction{}, fmt.Errorf("unusable prediction %q", prediction.PredictedClass)
	}
	return prediction, nil
}
