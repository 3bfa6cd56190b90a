// Command seed generates a realistic sample dataset CSV for local
// development, so the server can be exercised without a real export.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

var badgePool = []string{
	"The Basics of Google Cloud Compute",
	"Get Started with Cloud Storage",
	"Get Started with Pub/Sub",
	"Level 3: The Arcade Quiz",
	"Analyze Images with the Cloud Vision API",
	"Prompt Design in Vertex AI",
	"Develop GenAI Apps with Gemini and Streamlit",
}

var gamePool = []string{
	"Level 1: Cloud Infrastructure",
	"Level 2: Modern Application Deployment",
	"Base Camp",
	"Arcade Certification Zone",
}

func main() {
	rows := flag.Int("rows", 50, "number of participant rows to generate")
	out := flag.String("out", "data.csv", "output file path")
	seed := flag.Int64("seed", 0, "random seed (0 = nondeterministic)")
	flag.Parse()

	if *seed != 0 {
		gofakeit.Seed(*seed)
	}

	var b strings.Builder
	b.WriteString("User Name,User Email,Profile URL,Profile Status,Access Code Redeemed,All Pathways Completed,# of Badges,Badge Names,# of Games,Game Names\n")

	for i := 0; i < *rows; i++ {
		badges := gofakeit.Number(0, len(badgePool))
		games := gofakeit.Number(0, len(gamePool))
		completed := badges == len(badgePool) && games == len(gamePool)
		writeRow(&b, []string{
			gofakeit.Name(),
			gofakeit.Email(),
			"https://www.cloudskillsboost.google/public_profiles/" + gofakeit.UUID(),
			pick("Public", "Private"),
			pick("Yes", "No"),
			yesNo(completed),
			fmt.Sprintf("%d", badges),
			strings.Join(badgePool[:badges], " | "),
			fmt.Sprintf("%d", games),
			strings.Join(gamePool[:games], " | "),
		})
	}

	if err := os.WriteFile(*out, []byte(b.String()), 0644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	fmt.Printf("Wrote %d rows to %s\n", *rows, *out)
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

func pick(options ...string) string {
	return options[gofakeit.Number(0, len(options)-1)]
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
