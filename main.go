package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ZacxDev/story-reel/internal/config"
	"github.com/ZacxDev/story-reel/internal/source"
	"github.com/ZacxDev/story-reel/pkg/storyreel"
	"github.com/ZacxDev/story-reel/pkg/types"
)

var (
	rootCmd = &cobra.Command{
		Use:   "story-reel",
		Short: "A short-form story video generator",
		Long: fmt.Sprintf(`story-reel turns written stories into narrated vertical videos:
chat conversations revealed bubble by bubble, thread posts read card by
card over gameplay footage, or generated scripts illustrated slide by
slide.

Supported content sources:
%s
Examples:
  # Narrate a chat script over a background video
  story-reel chat -s script.txt -b gameplay.mp4 -o out.mp4

  # Turn a thread into a narrated card video
  story-reel reddit -u https://www.reddit.com/r/stories/comments/abc/x/ -b gameplay.mp4 -o out.mp4

  # Generate an illustrated story from a premise
  story-reel story -p "a lighthouse keeper finds a message in a bottle" -o out.mp4`,
			formatSupportedSources()),
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Render a scripted chat conversation",
		Long: `Render a chat conversation from a script file. Each line of the script
is "Author: message"; the first speaker is the original poster.

Example:
  story-reel chat -s script.txt -b gameplay.mp4 -o out.mp4 --voice v1 --second-voice v2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptPath, _ := cmd.Flags().GetString("script")
			return runGenerate(cmd, "chat", source.Input{ScriptPath: scriptPath})
		},
	}

	redditCmd = &cobra.Command{
		Use:   "reddit",
		Short: "Render a thread as narrated cards",
		Long: `Fetch a thread and narrate the post plus its top comments as cards
over the background video.

Example:
  story-reel reddit -u https://www.reddit.com/r/stories/comments/abc/x/ -b gameplay.mp4 -o out.mp4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			maxComments, _ := cmd.Flags().GetInt("max-comments")
			return runGenerate(cmd, "reddit", source.Input{URL: url, MaxComments: maxComments})
		},
	}

	storyCmd = &cobra.Command{
		Use:   "story",
		Short: "Generate an illustrated story from a premise",
		Long: `Generate a narrated script from a premise and render it as a slide
show of generated illustrations with slow zoom.

Example:
  story-reel story -p "a lighthouse keeper finds a message in a bottle" -o out.mp4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, _ := cmd.Flags().GetString("prompt")
			return runGenerate(cmd, "story", source.Input{Prompt: prompt})
		},
	}
)

func formatSupportedSources() string {
	var sb strings.Builder
	for _, name := range storyreel.GetSupportedSources() {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}
	return sb.String()
}

// runGenerate collects the shared flags, wires the progress bar, and runs
// one generation for the named source.
func runGenerate(cmd *cobra.Command, sourceName string, input source.Input) error {
	output, _ := cmd.Flags().GetString("output")
	background, _ := cmd.Flags().GetString("background")
	music, _ := cmd.Flags().GetString("music")
	fontPath, _ := cmd.Flags().GetString("font")
	avatarDir, _ := cmd.Flags().GetString("avatars")
	theme, _ := cmd.Flags().GetString("theme")
	transition, _ := cmd.Flags().GetString("transition")
	mode, _ := cmd.Flags().GetString("mode")
	voice, _ := cmd.Flags().GetString("voice")
	secondVoice, _ := cmd.Flags().GetString("second-voice")
	withTag, _ := cmd.Flags().GetBool("subscribe-tag")
	tagImage, _ := cmd.Flags().GetString("tag-image")
	tagSound, _ := cmd.Flags().GetString("tag-sound")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if output == "" {
		return fmt.Errorf("output path is required")
	}
	if secondVoice == "" {
		secondVoice = voice
	}
	input.NarratorVoice = voice
	input.AltVoice = secondVoice

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("preparing"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	opts := &storyreel.Options{
		Source: sourceName,
		Input:  input,
		Generate: config.GenerateOptions{
			OutputPath:     output,
			BackgroundPath: background,
			MusicPath:      music,
			FontPath:       fontPath,
			AvatarDir:      avatarDir,
			Theme:          types.Theme(theme),
			Transition:     types.TransitionStyle(transition),
			Mode:           types.PipelineMode(mode),
			VoiceID:        voice,
			SecondVoiceID:  secondVoice,
			WithTag:        withTag,
			TagImagePath:   tagImage,
			TagSoundPath:   tagSound,
			Verbose:        verbose,
		},
		ElevenLabsKey: os.Getenv("ELEVENLABS_API_KEY"),
		OnProgress: func(phase string, overall float64) {
			bar.Describe(phase)
			bar.Set(int(overall))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := storyreel.Generate(ctx, opts)
	bar.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%.1fs, %.1f MB)\n",
		result.Path, result.DurationSeconds, float64(result.SizeBytes)/(1024*1024))
	return nil
}

// addSharedFlags registers the flags every generation subcommand takes.
func addSharedFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Output video path")
	cmd.Flags().StringP("background", "b", "", "Background video file")
	cmd.Flags().StringP("music", "m", "", "Background music file")
	cmd.Flags().String("font", "", "Overlay font file (.ttf/.otf)")
	cmd.Flags().String("avatars", "", "Directory of avatar images keyed by author name")
	cmd.Flags().String("theme", "dark", "Overlay theme (dark or light)")
	cmd.Flags().String("transition", "crossfade", "Segment transition (cut or crossfade)")
	cmd.Flags().String("mode", "", "Pipeline mode (live or offline); defaults per source")
	cmd.Flags().String("voice", "", "Synthesis voice for the original poster")
	cmd.Flags().String("second-voice", "", "Synthesis voice for other speakers")
	cmd.Flags().Bool("subscribe-tag", false, "Overlay the subscribe tag near the end")
	cmd.Flags().String("tag-image", "", "Subscribe tag image file")
	cmd.Flags().String("tag-sound", "", "Subscribe tag click sound file")
	cmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("voice")
}

func init() {
	chatCmd.Flags().StringP("script", "s", "", "Chat script file")
	chatCmd.MarkFlagRequired("script")

	redditCmd.Flags().StringP("url", "u", "", "Thread URL")
	redditCmd.Flags().Int("max-comments", 8, "Maximum comments to narrate")
	redditCmd.MarkFlagRequired("url")

	storyCmd.Flags().StringP("prompt", "p", "", "Story premise")
	storyCmd.MarkFlagRequired("prompt")

	for _, cmd := range []*cobra.Command{chatCmd, redditCmd, storyCmd} {
		addSharedFlags(cmd)
	}

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(redditCmd)
	rootCmd.AddCommand(storyCmd)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
	source.StoryScriptEndpoint = os.Getenv("SCRIPT_API_URL")
	source.StoryScriptAPIKey = os.Getenv("SCRIPT_API_KEY")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
