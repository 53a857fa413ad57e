package app

import (
	"fmt"
	"sync"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoHTTP "github.com/allisson/fieldcrypt/internal/crypto/http"
	cryptoRepository "github.com/allisson/fieldcrypt/internal/crypto/repository"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

// cryptoDeps holds the key subsystem dependencies of the container.
type cryptoDeps struct {
	kek             *cryptoDomain.KEK
	aeadManager     cryptoService.AEADManager
	writeBackend    cryptoService.WrapBackend
	backendRegistry cryptoService.BackendRegistry
	keyManager      cryptoService.KeyManager
	keyRepo         cryptoUseCase.KeyRepository
	settingsRepo    cryptoUseCase.SettingsRepository
	keyUseCase      cryptoUseCase.KeyUseCase
	rotationUseCase cryptoUseCase.RotationUseCase
	cryptoHandler   *cryptoHTTP.CryptoHandler

	aeadManagerInit     sync.Once
	backendsInit        sync.Once
	keyManagerInit      sync.Once
	keyRepoInit         sync.Once
	settingsRepoInit    sync.Once
	keyUseCaseInit      sync.Once
	rotationUseCaseInit sync.Once
	cryptoHandlerInit   sync.Once
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// WriteBackend returns the wrap backend new DEKs are wrapped under, selected
// by the WRAP_SCHEME configuration.
func (c *Container) WriteBackend() (cryptoService.WrapBackend, error) {
	if err := c.initBackends(); err != nil {
		return nil, err
	}
	return c.writeBackend, nil
}

// BackendRegistry returns the registry resolving wrap backends by scheme.
// The env_kek backend is registered whenever ENCRYPTION_KEK is set; the kms
// backend is always registered so kms-wrapped rows remain readable.
func (c *Container) BackendRegistry() (cryptoService.BackendRegistry, error) {
	if err := c.initBackends(); err != nil {
		return nil, err
	}
	return c.backendRegistry, nil
}

// initBackends builds the wrap backends and the registry once.
func (c *Container) initBackends() error {
	var err error
	c.backendsInit.Do(func() {
		err = c.buildBackends()
		if err != nil {
			c.initErrors["backends"] = err
		}
	})
	if err != nil {
		return err
	}
	if storedErr, exists := c.initErrors["backends"]; exists {
		return storedErr
	}
	return nil
}

func (c *Container) buildBackends() error {
	backends := make([]cryptoService.WrapBackend, 0, 2)

	kek, kekErr := cryptoDomain.LoadKEKFromEnv(cryptoDomain.KekEnvVar)
	if kekErr == nil {
		c.kek = kek
		backends = append(backends, cryptoService.NewEnvKekBackend(kek, c.AEADManager()))
	}

	kmsBackend := cryptoService.NewKMSBackend(c.config.KMSKeyURI, cryptoService.KMSBackendOptions{
		Timeout:        c.config.KMSTimeout,
		MaxRetries:     uint64(c.config.KMSMaxRetries),
		RequestsPerSec: c.config.KMSRequestsPerSec,
	})
	backends = append(backends, kmsBackend)

	switch c.config.WrapScheme {
	case string(cryptoDomain.SchemeEnvKEK):
		if kekErr != nil {
			return fmt.Errorf("wrap scheme env_kek requires a valid %s: %w", cryptoDomain.KekEnvVar, kekErr)
		}
		c.writeBackend = backends[0]
	case string(cryptoDomain.SchemeKMS):
		if c.config.KMSKeyURI == "" {
			return fmt.Errorf("wrap scheme kms requires KMS_KEY_URI")
		}
		c.writeBackend = kmsBackend
	default:
		return fmt.Errorf("unsupported wrap scheme: %s", c.config.WrapScheme)
	}

	c.backendRegistry = cryptoService.NewBackendRegistry(backends...)
	return nil
}

// KeyRepository returns the encryption key repository based on the database driver.
func (c *Container) KeyRepository() (cryptoUseCase.KeyRepository, error) {
	var err error
	c.keyRepoInit.Do(func() {
		c.keyRepo, err = c.initKeyRepository()
		if err != nil {
			c.initErrors["keyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRepo"]; exists {
		return nil, storedErr
	}
	return c.keyRepo, nil
}

// SettingsRepository returns the encryption settings repository based on the
// database driver.
func (c *Container) SettingsRepository() (cryptoUseCase.SettingsRepository, error) {
	var err error
	c.settingsRepoInit.Do(func() {
		c.settingsRepo, err = c.initSettingsRepository()
		if err != nil {
			c.initErrors["settingsRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["settingsRepo"]; exists {
		return nil, storedErr
	}
	return c.settingsRepo, nil
}

// KeyManager returns the key manager service.
func (c *Container) KeyManager() (cryptoService.KeyManager, error) {
	var err error
	c.keyManagerInit.Do(func() {
		c.keyManager, err = c.initKeyManager()
		if err != nil {
			c.initErrors["keyManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyManager"]; exists {
		return nil, storedErr
	}
	return c.keyManager, nil
}

// KeyUseCase returns the key use case.
func (c *Container) KeyUseCase() (cryptoUseCase.KeyUseCase, error) {
	var err error
	c.keyUseCaseInit.Do(func() {
		c.keyUseCase, err = c.initKeyUseCase()
		if err != nil {
			c.initErrors["keyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyUseCase, nil
}

// RotationUseCase returns the rotation use case, decorated with metrics.
func (c *Container) RotationUseCase() (cryptoUseCase.RotationUseCase, error) {
	var err error
	c.rotationUseCaseInit.Do(func() {
		c.rotationUseCase, err = c.initRotationUseCase()
		if err != nil {
			c.initErrors["rotationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationUseCase"]; exists {
		return nil, storedErr
	}
	return c.rotationUseCase, nil
}

// RewrapUseCase builds a rewrap use case targeting the named backend:
// "env" rewraps under the replacement KEK from ENCRYPTION_KEK_NEW, "kms"
// rewraps under the configured KMS key. Built per call since the target
// varies between invocations.
func (c *Container) RewrapUseCase(target string) (cryptoUseCase.RewrapUseCase, error) {
	var targetBackend cryptoService.WrapBackend
	switch target {
	case "env":
		newKek, kekErr := cryptoDomain.LoadKEKFromEnv(cryptoDomain.NewKekEnvVar)
		if kekErr != nil {
			return nil, fmt.Errorf("rewrap target env requires a valid %s: %w", cryptoDomain.NewKekEnvVar, kekErr)
		}
		targetBackend = cryptoService.NewEnvKekBackend(newKek, c.AEADManager())
	case "kms":
		if c.config.KMSKeyURI == "" {
			return nil, fmt.Errorf("rewrap target kms requires KMS_KEY_URI")
		}
		targetBackend = cryptoService.NewKMSBackend(c.config.KMSKeyURI, cryptoService.KMSBackendOptions{
			Timeout:        c.config.KMSTimeout,
			MaxRetries:     uint64(c.config.KMSMaxRetries),
			RequestsPerSec: c.config.KMSRequestsPerSec,
		})
	default:
		return nil, fmt.Errorf("unsupported rewrap target: %s (valid options: env, kms)", target)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rewrap use case: %w", err)
	}

	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for rewrap use case: %w", err)
	}

	registry, err := c.BackendRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get backend registry for rewrap use case: %w", err)
	}

	useCase := cryptoUseCase.NewRewrapUseCase(txManager, keyRepo, registry, targetBackend)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for rewrap use case: %w", err)
	}

	return cryptoUseCase.NewRewrapUseCaseWithMetrics(useCase, businessMetrics), nil
}

// CryptoHandler returns the crypto HTTP handler.
func (c *Container) CryptoHandler() (*cryptoHTTP.CryptoHandler, error) {
	var err error
	c.cryptoHandlerInit.Do(func() {
		c.cryptoHandler, err = c.initCryptoHandler()
		if err != nil {
			c.initErrors["cryptoHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cryptoHandler"]; exists {
		return nil, storedErr
	}
	return c.cryptoHandler, nil
}

func (c *Container) initKeyRepository() (cryptoUseCase.KeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return cryptoRepository.NewMySQLKeyRepository(db), nil
	case "postgres":
		return cryptoRepository.NewPostgreSQLKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initSettingsRepository() (cryptoUseCase.SettingsRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for settings repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return cryptoRepository.NewMySQLSettingsRepository(db), nil
	case "postgres":
		return cryptoRepository.NewPostgreSQLSettingsRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initKeyManager() (cryptoService.KeyManager, error) {
	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for key manager: %w", err)
	}

	settingsRepo, err := c.SettingsRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings repository for key manager: %w", err)
	}

	registry, err := c.BackendRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get backend registry for key manager: %w", err)
	}

	return cryptoService.NewKeyManager(keyRepo, settingsRepo, registry, c.AEADManager()), nil
}

func (c *Container) initKeyUseCase() (cryptoUseCase.KeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for key use case: %w", err)
	}

	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for key use case: %w", err)
	}

	settingsRepo, err := c.SettingsRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings repository for key use case: %w", err)
	}

	writeBackend, err := c.WriteBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to get write backend for key use case: %w", err)
	}

	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get key manager for key use case: %w", err)
	}

	migrators, err := c.RecordMigrators()
	if err != nil {
		return nil, fmt.Errorf("failed to get record migrators for key use case: %w", err)
	}

	return cryptoUseCase.NewKeyUseCase(txManager, keyRepo, settingsRepo, writeBackend, keyManager, migrators), nil
}

func (c *Container) initRotationUseCase() (cryptoUseCase.RotationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rotation use case: %w", err)
	}

	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for rotation use case: %w", err)
	}

	settingsRepo, err := c.SettingsRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings repository for rotation use case: %w", err)
	}

	writeBackend, err := c.WriteBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to get write backend for rotation use case: %w", err)
	}

	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get key manager for rotation use case: %w", err)
	}

	migrators, err := c.RecordMigrators()
	if err != nil {
		return nil, fmt.Errorf("failed to get record migrators for rotation use case: %w", err)
	}

	useCase := cryptoUseCase.NewRotationUseCase(txManager, keyRepo, settingsRepo, writeBackend, keyManager, migrators)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for rotation use case: %w", err)
	}

	return cryptoUseCase.NewRotationUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initCryptoHandler() (*cryptoHTTP.CryptoHandler, error) {
	keyUseCase, err := c.KeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key use case for crypto handler: %w", err)
	}

	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get key manager for crypto handler: %w", err)
	}

	return cryptoHTTP.NewCryptoHandler(keyUseCase, keyManager, c.Logger()), nil
}
