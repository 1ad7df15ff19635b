// Package e2e provides end-to-end tests over a generated lecture corpus.
package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kikitori/pkg/utils"
)

// Lecture is one generated transcript: a title, its cue texts and the file
// name it is written under.
type Lecture struct {
	Source string
	Title  string
	Cues   []string
}

// QueryTestCase is a question and the source that must appear in its hits.
type QueryTestCase struct {
	Query          string
	ExpectedSource string
	Description    string
}

// Corpus holds lectures and query test cases.
type Corpus struct {
	Lectures     []Lecture
	TestCases    []QueryTestCase
	TotalCues    int
	TotalQueries int
}

var topics = []struct {
	title  string
	phrase string
	detail string
}{
	{"Entropy", "entropy measures uncertainty", "a fair coin has maximal entropy for two outcomes"},
	{"Gradient Descent", "gradient descent minimizes loss", "the learning rate scales each downhill step"},
	{"Backpropagation", "backpropagation applies the chain rule", "partial derivatives flow from the output layer backwards"},
	{"Convolutional Networks", "convolution kernels slide over images", "pooling layers shrink feature maps"},
	{"Recurrent Networks", "recurrent networks carry hidden state", "vanishing gradients limit long sequences"},
	{"Attention", "attention weights compare queries and keys", "softmax turns similarity scores into weights"},
	{"Bayes Theorem", "bayes theorem updates prior beliefs", "posterior probability combines likelihood and prior"},
	{"Markov Chains", "markov chains forget their past", "transition matrices describe state changes"},
	{"Decision Trees", "decision trees split on features", "information gain chooses the best split"},
	{"Support Vector Machines", "support vectors define the margin", "kernels map points into higher dimensions"},
	{"Clustering", "kmeans clustering assigns centroids", "inertia decreases as clusters tighten"},
	{"Dimensionality Reduction", "principal components capture variance", "eigenvectors of the covariance matrix give directions"},
	{"Regularization", "regularization penalizes large weights", "dropout randomly silences neurons during training"},
	{"Reinforcement Learning", "agents maximize cumulative reward", "qlearning estimates action values"},
	{"Sorting Algorithms", "quicksort partitions around a pivot", "mergesort divides and merges halves"},
	{"Hash Tables", "hash tables map keys to buckets", "collisions chain entries within a bucket"},
	{"Graph Search", "breadth first search explores layers", "dijkstra relaxes edges with a priority queue"},
	{"Dynamic Programming", "dynamic programming reuses subproblems", "memoization caches overlapping results"},
	{"Thermodynamics", "thermodynamics conserves energy", "heat flows from hot bodies to cold ones"},
	{"Photosynthesis", "chlorophyll absorbs sunlight", "plants convert carbon dioxide into glucose"},
}

// BuildCorpus returns n lectures and one query per lecture. Topics repeat
// once n exceeds the topic list; a per-lecture marker word keeps every
// lecture distinguishable.
func BuildCorpus(n int) *Corpus {
	c := &Corpus{}
	for i := 0; i < n; i++ {
		t := topics[i%len(topics)]
		marker := fmt.Sprintf("lecture%03d", i)
		lec := Lecture{
			Source: marker + ".vtt",
			Title:  t.title,
			Cues: []string{
				fmt.Sprintf("welcome to %s part %d", strings.ToLower(t.title), i/len(topics)+1),
				fmt.Sprintf("today %s in %s", t.phrase, marker),
				t.detail,
				"please review the slides before next class",
			},
		}
		c.Lectures = append(c.Lectures, lec)
		c.TotalCues += len(lec.Cues)
		c.TestCases = append(c.TestCases, QueryTestCase{
			Query:          fmt.Sprintf("%s %s", t.phrase, marker),
			ExpectedSource: lec.Source,
			Description:    marker + "_" + strings.ReplaceAll(strings.ToLower(t.title), " ", "_"),
		})
	}
	c.TotalQueries = len(c.TestCases)
	return c
}

// VTT renders the lecture as a WebVTT transcript with five-second cues.
func (l Lecture) VTT() string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, cue := range l.Cues {
		start := float64(i * 5)
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, vttTime(start), vttTime(start+5), cue)
	}
	return b.String()
}

func vttTime(sec float64) string {
	ts := utils.FormatSeconds(sec)
	if strings.Count(ts, ":") == 1 {
		return "00:" + ts
	}
	return ts
}

// WriteTo writes every lecture into dir and returns the file paths.
func (c *Corpus) WriteTo(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(c.Lectures))
	for _, lec := range c.Lectures {
		p := filepath.Join(dir, lec.Source)
		if err := os.WriteFile(p, []byte(lec.VTT()), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", lec.Source, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
