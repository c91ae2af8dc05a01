package commands

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"uthsis-backend/lib/scrapers/sisweb"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	flagBrowser   bool
	flagGradesUrl string
	flagPassword  string
)

func init() {
	fetchCmd.Flags().BoolVar(&flagBrowser, "browser", false, "drive a headless browser instead of the plain HTTP flow")
	fetchCmd.Flags().StringVar(&flagGradesUrl, "grades-url", "", "override the grades page url")
	fetchCmd.Flags().StringVar(&flagPassword, "password", "", "password, read from stdin when omitted")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <username>",
	Short: "Log into the SIS and print the grade table.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]

		password := flagPassword
		if password == "" {
			fmt.Fprint(os.Stderr, "password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				log.Fatal(err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		var err error
		var records []sisweb.GradeRecord
		if flagBrowser {
			records, err = sisweb.FetchGradesBrowser(cmd.Context(), username, password, sisweb.BrowserOptions{
				GradesUrl: flagGradesUrl,
			})
			if err != nil {
				log.Fatal(err)
			}
		} else {
			registry := sisweb.NewSessionRegistry(0)
			client := sisweb.NewClient(sisweb.ClientOptions{
				GradesUrl: flagGradesUrl,
			}, registry)

			sessionId, err := client.Login(cmd.Context(), username, password)
			if err != nil {
				log.Fatal(err)
			}
			records, err = client.FetchGrades(cmd.Context(), sessionId)
			if err != nil {
				log.Fatal(err)
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Code", "Course", "Grade", "ECTS", "Period", "Year", "Passed"})

		var sum, credits float64
		passed := 0
		for _, r := range records {
			t.AppendRow(table.Row{
				r.Code, r.Title, fmt.Sprintf("%.1f", r.Grade), r.Credits, r.Period, r.AcademicYear, r.Passed,
			})
			sum += r.Grade
			if r.Passed {
				passed++
				credits += r.Credits
			}
		}
		t.Render()

		if len(records) > 0 {
			fmt.Printf(
				"%d courses, %d passed, %.1f ECTS, average %.2f\n",
				len(records), passed, credits, sum/float64(len(records)),
			)
		}
	},
}
