// Command mockmodel is a drop-in subprocess analyzer: it reads one
// analysis document on stdin and writes the result on stdout, exactly
// like the production Python model. Environment knobs simulate the
// model's failure modes in integration environments.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/finsightlab/mlbridge/internal/mockmodel"
	"github.com/finsightlab/mlbridge/models"
)

func main() {
	if ms, _ := strconv.Atoi(os.Getenv("MOCKMODEL_SLEEP_MS")); ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
	if os.Getenv("MOCKMODEL_GARBAGE") == "1" {
		fmt.Fprint(os.Stdout, "degraded model output {{{")
		return
	}
	if code, _ := strconv.Atoi(os.Getenv("MOCKMODEL_EXIT_CODE")); code != 0 {
		fmt.Fprintln(os.Stderr, "mockmodel: forced failure")
		os.Exit(code)
	}

	var input models.AnalysisInput
	if err := json.NewDecoder(os.Stdin).Decode(&input); err != nil {
		fmt.Fprintln(os.Stderr, "mockmodel: decode input:", err)
		os.Exit(1)
	}

	result, err := mockmodel.New().Analyze(context.Background(), &input)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mockmodel:", err)
		os.Exit(1)
	}

	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		fmt.Fprintln(os.Stderr, "mockmodel: encode result:", err)
		os.Exit(1)
	}
}
