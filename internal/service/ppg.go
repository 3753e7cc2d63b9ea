package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mzaki9/Atomus-Lumea/common/database"
	mqttcommon "github.com/mzaki9/Atomus-Lumea/common/mqtt"
	rediscommon "github.com/mzaki9/Atomus-Lumea/common/redis"
	"github.com/mzaki9/Atomus-Lumea/internal/cache"
	"github.com/mzaki9/Atomus-Lumea/internal/camera"
	"github.com/mzaki9/Atomus-Lumea/internal/client"
	"github.com/mzaki9/Atomus-Lumea/internal/config"
	"github.com/mzaki9/Atomus-Lumea/internal/display"
	"github.com/mzaki9/Atomus-Lumea/internal/estimator"
	"github.com/mzaki9/Atomus-Lumea/internal/repository"
	"github.com/mzaki9/Atomus-Lumea/internal/reporter"
	"github.com/mzaki9/Atomus-Lumea/internal/risk"
	"github.com/mzaki9/Atomus-Lumea/internal/sampler"
	"github.com/mzaki9/Atomus-Lumea/internal/session"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// 事件流近似长度上限
	estimateStreamMaxLen  = 10000
	serverShutdownTimeout = 5 * time.Second
)

// PPGService lumea-ppg 服务
type PPGService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client

	controller *session.Controller
	hub        *display.Hub
	router     *display.Router
	server     *display.Server
}

// NewPPGService 创建服务：按配置初始化存储、相机、会话控制器和 HTTP 服务
func NewPPGService(cfg *config.Config, logger *zap.Logger) (*PPGService, error) {
	s := &PPGService{config: cfg, logger: logger}

	// 初始化Redis
	s.redis = rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), s.redis); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化数据库（可选）
	var measurements *repository.MeasurementRepository
	if cfg.Persist.Enabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		measurements = repository.NewMeasurementRepository(db, logger)
		if err := measurements.EnsureSchema(context.Background()); err != nil {
			s.closeResources()
			return nil, fmt.Errorf("failed to ensure measurement schema: %w", err)
		}
	}

	cam, err := s.newCamera()
	if err != nil {
		s.closeResources()
		return nil, err
	}

	s.controller = session.NewController(session.Options{
		DeviceID:     cfg.DeviceID,
		TickInterval: cfg.Session.Tick,
		MaxDuration:  cfg.Session.MaxDuration,
	}, cam, sampler.New(logger), estimator.NewCalculator(), logger)

	if s.mqttClient != nil {
		s.mqttClient.OnConnectionLost(func(err error) {
			s.controller.ReportCameraError(fmt.Errorf("mqtt connection lost: %w", err))
		})
	}

	// 状态查询和会话结束共用同一份按估计缓存的分类结果
	classifier := risk.NewCachedClassifier(risk.NewClassifier(s.newPredictor(), cfg.Risk.Age, logger))
	s.controller.SetClassifier(classifier)

	// 观察者
	estimateCache := cache.NewEstimateCache(cache.Config{
		DeviceID:    cfg.DeviceID,
		TTL:         cfg.Cache.TTL,
		Stream:      cfg.Cache.Stream,
		StateStream: cfg.Cache.StateStream,
	}, cache.NewRedisKVStore(s.redis), cache.NewRedisStreamPublisher(s.redis, estimateStreamMaxLen), logger)
	s.hub = display.NewHub(logger)
	s.controller.AddObserver(estimateCache)
	s.controller.AddObserver(s.hub)

	// 协作方
	backend := client.NewBackend(client.Config{
		BaseURL:    cfg.Backend.URL,
		Timeout:    cfg.Backend.Timeout,
		RetryCount: 2,
	}, client.StaticTokenSource(cfg.Backend.AccessToken), logger)
	s.controller.AddCollaborator(reporter.NewHealthReporter(client.NewHealthClient(backend), logger))
	s.controller.AddCollaborator(reporter.NewLocationReporter(reporter.StaticLocation{
		Latitude:  cfg.Location.Latitude,
		Longitude: cfg.Location.Longitude,
		Set:       cfg.Location.Set,
	}, client.NewLocationClient(backend), logger))

	var history display.HistoryStore
	if measurements != nil {
		s.controller.AddCollaborator(reporter.NewMeasurementReporter(measurements, logger))
		history = measurements
	}

	s.router = display.NewRouter(logger)
	s.router.RegisterPPGRoutes(display.NewHandler(s.controller, classifier, history, cfg.DeviceID, logger))
	s.router.RegisterHub(s.hub)
	s.server = display.NewServer(cfg.HTTPAddr, s.router, logger)

	return s, nil
}

func (s *PPGService) newCamera() (session.Camera, error) {
	cfg := s.config
	switch cfg.Camera.Source {
	case config.CameraMQTT:
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
		}
		s.mqttClient = mqttClient
		return camera.NewMQTTCamera(mqttClient, camera.MQTTConfig{
			DeviceID:     cfg.DeviceID,
			FrameTopic:   cfg.Camera.FrameTopic,
			CommandTopic: cfg.Camera.CommandTopic,
			QoS:          cfg.MQTT.QoS,
		}, s.logger), nil
	default:
		synCfg := camera.DefaultSyntheticConfig()
		synCfg.Width = cfg.Camera.Width
		synCfg.Height = cfg.Camera.Height
		synCfg.FPS = cfg.Camera.FPS
		synCfg.BPM = cfg.Camera.SimBPM
		return camera.NewSyntheticCamera(synCfg, s.logger), nil
	}
}

func (s *PPGService) newPredictor() risk.Predictor {
	if s.config.Risk.Endpoint != "" {
		return risk.NewHTTPPredictor(s.config.Risk.Endpoint, s.config.Backend.Timeout, s.logger)
	}
	return risk.NewThresholdPredictor(risk.DefaultThresholds())
}

// Controller 会话控制器
func (s *PPGService) Controller() *session.Controller {
	return s.controller
}

// Handler HTTP 路由
func (s *PPGService) Handler() http.Handler {
	return s.router
}

// Start 启动 HTTP 服务，阻塞直到服务器关闭或 ctx 取消
func (s *PPGService) Start(ctx context.Context) error {
	s.logger.Info("Starting lumea-ppg service components",
		zap.String("device_id", s.config.DeviceID),
		zap.String("camera_source", s.config.Camera.Source),
		zap.Bool("persist_enabled", s.config.Persist.Enabled),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := s.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("stop http server: %w", err)
		}
		return <-errCh
	}
}

// Stop 停止服务
func (s *PPGService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping lumea-ppg service")

	var errs []error
	if s.server != nil {
		if err := s.server.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}
	if s.hub != nil {
		s.hub.Close()
	}
	// 停止会话（释放相机并等待协作方完成）
	if s.controller != nil {
		if err := s.controller.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session controller: %w", err))
		}
	}
	s.closeResources()

	s.logger.Info("Lumea-ppg service stopped")
	return errors.Join(errs...)
}

func (s *PPGService) closeResources() {
	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	// 关闭Redis
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}
	// 关闭数据库
	if s.db != nil {
		database.Close(s.db)
	}
}
