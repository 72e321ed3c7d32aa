package main

import (
	"repbbs/config"
	"repbbs/models"
	"repbbs/routes"
	"repbbs/services"
	"repbbs/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Comment{}, &models.Vote{})

	r := routes.SetupRouter(db)

	decay := services.NewDecayService(db, cfg.DecayInactiveDays, cfg.DecayPenalty)
	scheduler, err := services.NewScheduler(decay, cfg.DecaySchedule)
	if err != nil {
		utils.Sugar.Fatalf("invalid decay schedule %q: %v", cfg.DecaySchedule, err)
	}
	scheduler.Start()

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, scheduler.Stop); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
