package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/ivlev/storyreel/internal/config"
	"github.com/ivlev/storyreel/internal/engine"
	"github.com/ivlev/storyreel/internal/story"
	"github.com/ivlev/storyreel/internal/system"
)

// Version задается при сборке: -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	// Создаем нужные директории, если их нет
	dirs := []string{"input/stories", "output"}
	for _, d := range dirs {
		os.MkdirAll(d, 0755)
	}

	storyPtr := flag.String("story", "", "Путь к манифесту истории (по умолчанию: самый свежий файл в input/stories/)")
	configPtr := flag.String("config", "", "YAML-профиль рендера")
	outputPtr := flag.String("output", "", "Путь к видео (если пусто: <output_dir>/<title>-<orientation>.mp4)")
	aspectPtr := flag.String("aspect", "", "Формат кадра: 16:9 или 9:16 (по умолчанию из манифеста)")
	encoderPtr := flag.String("encoder", "", "H.264 энкодер ffmpeg (по умолчанию: автоопределение)")
	shareURLPtr := flag.String("share-url", "", "Ссылка для QR-карточки в финале")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности")
	fontPtr := flag.String("font", "", "TTF/OTF шрифт субтитров; для CJK-озвучки нужен шрифт с иероглифами (встроенный Go Bold их не содержит)")
	workersPtr := flag.Int("workers", 0, "Потоки предзагрузки изображений (0 - из профиля)")

	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		var err error
		if cfg, err = config.Load(*configPtr); err != nil {
			log.Fatalf("[-] Ошибка профиля: %v", err)
		}
	}
	cfg.BuildVersion = Version
	if *shareURLPtr != "" {
		cfg.ShareURL = *shareURLPtr
	}
	if *statsPtr {
		cfg.ShowStats = true
	}
	if *fontPtr != "" {
		cfg.FontPath = *fontPtr
	}
	if *workersPtr > 0 {
		cfg.PreloadWorkers = *workersPtr
	}

	if err := system.CheckFFmpeg(cfg.FFmpegPath); err != nil {
		log.Fatalf("[-] %v", err)
	}
	switch {
	case *encoderPtr != "":
		cfg.VideoEncoder = *encoderPtr
	case cfg.VideoEncoder == "":
		cfg.VideoEncoder = system.GetBestH264Encoder(cfg.FFmpegPath)
		if cfg.VideoEncoder != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", cfg.VideoEncoder)
		}
	}

	storyPath := *storyPtr
	if storyPath == "" {
		latest, err := story.FindLatestManifest("input/stories")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите манифест истории в input/stories/", err)
		}
		storyPath = latest
		fmt.Printf("[*] Выбран манифест: %s\n", storyPath)
	}

	st, err := story.LoadStory(storyPath)
	if err != nil {
		log.Fatalf("[-] Ошибка загрузки истории: %v", err)
	}
	if *aspectPtr != "" {
		if st.AspectRatio, err = story.ParseAspectRatio(*aspectPtr); err != nil {
			log.Fatalf("[-] %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	project := engine.NewProject(cfg, engine.Deps{Observer: newObserver()})
	res, err := project.Run(ctx, st)
	if err != nil {
		log.Fatalf("[-] Ошибка рендера: %v", err)
	}

	finalOutput := *outputPtr
	if finalOutput == "" {
		finalOutput = filepath.Join(cfg.OutputDir, res.Artifact.FileName)
	}
	if err := os.MkdirAll(filepath.Dir(finalOutput), 0755); err != nil {
		log.Fatalf("[-] %v", err)
	}
	if err := os.WriteFile(finalOutput, res.Artifact.Data, 0644); err != nil {
		log.Fatalf("[-] Ошибка записи видео: %v", err)
	}

	fmt.Printf("[+++] Успех! Результат: %s (%s)\n", finalOutput, humanize.Bytes(uint64(len(res.Artifact.Data))))
}

// newObserver draws a progress bar on a terminal and falls back to plain log
// lines when output is redirected.
func newObserver() engine.Observer {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		var lastState engine.State = -1
		return engine.ObserverFunc(func(p engine.Progress) {
			if p.State != lastState {
				lastState = p.State
				fmt.Printf("[>] %3d%% %s\n", p.Percent, p.Status)
			}
		})
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionSetDescription("Рендер"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
	return engine.ObserverFunc(func(p engine.Progress) {
		bar.Describe(p.Status)
		bar.Set(p.Percent)
		if p.State == engine.Done {
			bar.Finish()
			fmt.Println()
		}
	})
}
