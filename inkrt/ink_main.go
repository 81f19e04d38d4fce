package main

import (
	"flag"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/sumi3d/sumi"
	"github.com/sumi3d/sumi/inkrt/app"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config overlaying the built-in defaults")
	debug := flag.Bool("debug", false, "Enable debug logging")
	seed := flag.Uint64("seed", 0, "Seed the RNG for reproducible splats (0 = entropy)")
	flag.Parse()

	log := sumi.NewDefaultLogger("sumi", *debug)

	cfg, err := sumi.LoadConfig(*configPath)
	if err != nil {
		log.Errorf("load config: %v", err)
		return
	}
	if *debug {
		cfg.Debug = true
	}

	engine := sumi.NewEngine(log)
	if err := cfg.Apply(engine); err != nil {
		log.Errorf("apply config: %v", err)
		return
	}
	if *seed != 0 {
		engine.UseSeededRandom(*seed)
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	host := app.New(window, engine, log)
	if err := host.Init(); err != nil {
		panic(err)
	}

	log.Infof("click to splat; drag to trail; C clear, S save, L load, D debug")
	host.Run()
}
