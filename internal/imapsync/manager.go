package imapsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"onebox/backend/internal/config"
	"onebox/backend/internal/domain"
	"onebox/backend/internal/monitoring"
)

// ConnectionState 账户连接状态
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected" // 未连接或已断开
	StateConnecting   ConnectionState = "connecting"   // 正在建立连接
	StateBackfilling  ConnectionState = "backfilling"  // 正在回填历史邮件
	StateIdle         ConnectionState = "idle"         // IDLE 实时监听中
	StatePolling      ConnectionState = "polling"      // 轮询兜底模式
)

// idleRefreshInterval IDLE 会话定期重建间隔，避免被服务器按 30 分钟上限掐断
const idleRefreshInterval = 25 * time.Minute

// BatchHandler 处理一批新抓取的邮件。
// 返回错误表示整批处理失败，同一批邮件会在下一次抓取中重新出现。
type BatchHandler func(ctx context.Context, account string, emails []*domain.Email) error

// FolderError 表示配置的邮箱文件夹无法选择，通常是文件夹名配置错误。
type FolderError struct {
	Folder string
	Err    error
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("select folder %q: %v", e.Folder, e.Err)
}

func (e *FolderError) Unwrap() error { return e.Err }

// AccountSyncer 维护单个 IMAP 账户的连接生命周期。
//
// 生命周期：连接 → 登录 → 选择文件夹 → 回填历史窗口 →
// IDLE 实时监听（服务器不支持时退化为固定间隔轮询）。
// 任何连接错误都会在固定延迟后重连；重连只补抓回看窗口而不是整个历史。
type AccountSyncer struct {
	account config.AccountConfig
	sync    config.SyncConfig
	handler BatchHandler
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	state    ConnectionState
	fetching bool
	firstRun bool

	// newMail 由服务器单方面推送触发，容量 1：抓取在途时多次推送合并为一次
	newMail chan struct{}
}

// NewAccountSyncer 创建账户同步器。
func NewAccountSyncer(
	account config.AccountConfig,
	syncCfg config.SyncConfig,
	handler BatchHandler,
	log *zap.Logger,
	metrics *monitoring.Metrics,
) *AccountSyncer {
	return &AccountSyncer{
		account:  account,
		sync:     syncCfg,
		handler:  handler,
		log:      log.With(zap.String("account", account.Address)),
		metrics:  metrics,
		state:    StateDisconnected,
		firstRun: true,
		newMail:  make(chan struct{}, 1),
	}
}

// Account 返回账户地址。
func (s *AccountSyncer) Account() string {
	return s.account.Address
}

// State 返回当前连接状态。
func (s *AccountSyncer) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// fatalStartup 判断会话错误是否应终止该账户的同步。
// 只有首次会话尚未成功打开文件夹时的文件夹错误才算启动失败；
// 启动成功后的同类错误（比如文件夹被改名）按普通会话错误重试。
func (s *AccountSyncer) fatalStartup(err error) bool {
	var folderErr *FolderError
	if !errors.As(err, &folderErr) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstRun
}

func (s *AccountSyncer) setState(state ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	connected := state == StateBackfilling || state == StateIdle || state == StatePolling
	s.metrics.SetConnected(s.account.Address, connected)
}

// Run 驱动连接生命周期直到上下文取消。
// 首次启动就选不中配置的文件夹视为启动失败，直接返回而不进入重连循环。
func (s *AccountSyncer) Run(ctx context.Context) error {
	for {
		err := s.runSession(ctx)
		s.setState(StateDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.fatalStartup(err) {
			s.log.Error("cannot open configured folder, sync stopped for account",
				zap.Error(err))
			return err
		}

		s.log.Warn("imap session ended, reconnecting",
			zap.Duration("delay", s.sync.ReconnectDelay),
			zap.Error(err))
		s.metrics.RecordReconnect(s.account.Address)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.sync.ReconnectDelay):
		}
	}
}

// runSession 执行一次完整会话：连接、回填、实时监听。返回时连接已关闭。
func (s *AccountSyncer) runSession(ctx context.Context) error {
	s.setState(StateConnecting)

	client, err := s.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Login(s.account.Address, s.account.Password).Wait(); err != nil {
		return fmt.Errorf("login %s: %w", s.account.Address, err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(s.account.Folder, nil).Wait(); err != nil {
		return &FolderError{Folder: s.account.Folder, Err: err}
	}

	// 首次会话回填完整历史窗口；重连只补抓回看窗口
	s.setState(StateBackfilling)
	since := time.Now().Add(-s.sync.EventLookback)
	s.mu.Lock()
	if s.firstRun {
		since = time.Now().Add(-s.sync.BackfillWindow)
		s.firstRun = false
	}
	s.mu.Unlock()

	if err := s.fetchSince(ctx, client, since); err != nil {
		return err
	}

	if client.Caps().Has(imap.CapIdle) {
		s.setState(StateIdle)
		return s.runIdle(ctx, client)
	}

	s.log.Info("server does not support IDLE, falling back to polling",
		zap.Duration("interval", s.sync.PollInterval))
	s.setState(StatePolling)
	return s.runPolling(ctx, client)
}

// dial 建立到 IMAP 服务器的连接并挂载单方面推送回调。
func (s *AccountSyncer) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.account.Host, s.account.Port)

	options := &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages == nil {
					return
				}
				select {
				case s.newMail <- struct{}{}:
				default:
				}
			},
		},
	}

	var client *imapclient.Client
	var err error
	if s.account.TLS {
		client, err = imapclient.DialTLS(addr, options)
	} else {
		client, err = imapclient.DialStartTLS(addr, options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return client, nil
}

// runIdle IDLE 实时监听循环。
// 收到新邮件事件后退出 IDLE、补抓回看窗口、再重新进入 IDLE。
func (s *AccountSyncer) runIdle(ctx context.Context, client *imapclient.Client) error {
	for {
		idleCmd, err := client.Idle()
		if err != nil {
			return fmt.Errorf("enter idle: %w", err)
		}

		var wake bool
		select {
		case <-ctx.Done():
			_ = idleCmd.Close()
			_ = idleCmd.Wait()
			return ctx.Err()
		case <-s.newMail:
			wake = true
		case <-time.After(idleRefreshInterval):
		}

		if err := idleCmd.Close(); err != nil {
			return fmt.Errorf("exit idle: %w", err)
		}
		if err := idleCmd.Wait(); err != nil {
			return fmt.Errorf("idle terminated: %w", err)
		}

		if wake {
			since := time.Now().Add(-s.sync.EventLookback)
			if err := s.fetchSince(ctx, client, since); err != nil {
				return err
			}
		}
	}
}

// runPolling 固定间隔轮询循环。
func (s *AccountSyncer) runPolling(ctx context.Context, client *imapclient.Client) error {
	ticker := time.NewTicker(s.sync.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			since := time.Now().Add(-s.sync.EventLookback)
			if err := s.fetchSince(ctx, client, since); err != nil {
				return err
			}
			// NOOP 促使服务器刷新邮箱状态
			if err := client.Noop().Wait(); err != nil {
				return fmt.Errorf("noop: %w", err)
			}
		}
	}
}

// fetchSince 抓取指定时间之后的邮件并交给批处理器。
// 同一账户同一时刻只允许一次在途抓取，并发触发直接丢弃。
func (s *AccountSyncer) fetchSince(ctx context.Context, client *imapclient.Client, since time.Time) error {
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		s.metrics.RecordFetchSuppressed(s.account.Address)
		s.log.Debug("fetch already in flight, skipping trigger")
		return nil
	}
	s.fetching = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.fetching = false
		s.mu.Unlock()
	}()

	criteria := &imap.SearchCriteria{Since: since}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return fmt.Errorf("uid search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil
	}

	emails, err := s.fetchMessages(client, uids)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return nil
	}

	s.log.Info("fetched messages",
		zap.Int("count", len(emails)),
		zap.Time("since", since))

	return s.handler(ctx, s.account.Address, emails)
}

// fetchMessages 按 UID 拉取完整邮件并解析。
// 单封邮件的解析失败只记日志，不影响同批其余邮件。
func (s *AccountSyncer) fetchMessages(client *imapclient.Client, uids []imap.UID) ([]*domain.Email, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)

	var emails []*domain.Email
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			s.log.Warn("failed to collect message", zap.Error(err))
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}

		email, err := ParseMessage(raw, s.account.Address, s.account.Folder)
		if err != nil {
			s.log.Warn("failed to parse message",
				zap.Uint32("uid", uint32(buf.UID)),
				zap.Error(err))
			continue
		}

		// FETCH 返回的已读标记覆盖解析默认值
		for _, flag := range buf.Flags {
			if flag == imap.FlagSeen {
				email.Read = true
			}
		}

		emails = append(emails, email)
	}

	if err := fetchCmd.Close(); err != nil {
		return emails, fmt.Errorf("fetch close: %w", err)
	}
	return emails, nil
}

// Manager 管理全部账户的同步器。
type Manager struct {
	syncers []*AccountSyncer
	log     *zap.Logger
}

// NewManager 为每个配置的账户创建同步器。
func NewManager(
	accounts []config.AccountConfig,
	syncCfg config.SyncConfig,
	handler BatchHandler,
	log *zap.Logger,
	metrics *monitoring.Metrics,
) *Manager {
	syncers := make([]*AccountSyncer, 0, len(accounts))
	for _, account := range accounts {
		syncers = append(syncers, NewAccountSyncer(account, syncCfg, handler, log, metrics))
	}
	return &Manager{syncers: syncers, log: log}
}

// Run 并发运行所有账户的同步器，直到上下文取消。
// 单个账户的故障由各自的重连循环兜住，不会影响其他账户。
func (m *Manager) Run(ctx context.Context) error {
	if len(m.syncers) == 0 {
		m.log.Warn("no imap accounts configured, sync disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, syncer := range m.syncers {
		syncer := syncer
		eg.Go(func() error {
			err := syncer.Run(egCtx)
			// 启动阶段的文件夹错误只停掉该账户，不拖垮其他账户的同步
			var folderErr *FolderError
			if errors.As(err, &folderErr) {
				m.log.Error("account sync disabled",
					zap.String("account", syncer.Account()),
					zap.Error(err))
				return nil
			}
			return err
		})
	}
	return eg.Wait()
}

// States 返回每个账户的当前连接状态快照。
func (m *Manager) States() map[string]ConnectionState {
	states := make(map[string]ConnectionState, len(m.syncers))
	for _, syncer := range m.syncers {
		states[syncer.Account()] = syncer.State()
	}
	return states
}
