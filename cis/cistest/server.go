// Package cistest 提供进程内的远程签发服务替身，用于测试
package cistest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/ceyewan/sctid-kit/sctid"
)

// 测试用凭据
const (
	Username = "tester"
	Password = "secret"
)

// firstItemID 每个分区的起始条目 ID，保证短格式标识符也满足最小长度
const firstItemID = 100

type bulkRequest struct {
	Namespace    int    `json:"namespace"`
	PartitionID  string `json:"partitionId"`
	Quantity     int    `json:"quantity"`
	SoftwareName string `json:"softwareName"`
}

type job struct {
	polls int
	ids   []string
}

type partitionKey struct {
	namespace int
	partition string
}

// Server 模拟签发服务：登录、token 探测、批量作业、作业状态与结果
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	tokens      map[string]bool
	tokenSeq    int
	nextItem    map[partitionKey]int64
	jobs        map[string]*job
	jobSeq      int
	logins      int
	authCalls   int
	submissions []int
	schemeNames []string
	software    []string

	// 行为开关
	pendingPolls    int
	jobStatus       string
	jobLog          string
	failSubmission  map[int]bool
	omitJobID       bool
	recordsOverride *string
	authStatus      int
	rejectLogin     bool
}

// NewServer 启动替身服务，测试结束时调用 Close
func NewServer() *Server {
	s := &Server{
		tokens:         make(map[string]bool),
		nextItem:       make(map[partitionKey]int64),
		jobs:           make(map[string]*job),
		jobStatus:      "2",
		failSubmission: make(map[int]bool),
	}

	r := mux.NewRouter()
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/authenticate", s.handleAuthenticate).Methods(http.MethodPost)
	r.HandleFunc("/sct/bulk/{operation}", s.withToken(s.handleBulk)).Methods(http.MethodPost)
	r.HandleFunc("/bulk/jobs/{jobId}", s.withToken(s.handleJobStatus)).Methods(http.MethodGet)
	r.HandleFunc("/bulk/jobs/{jobId}/records", s.withToken(s.handleRecords)).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	return s
}

// ExpireTokens 使所有已签发 token 失效，下一次探测将返回 401
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool)
}

// SetPendingPolls 作业在前 n 次状态查询中保持处理中
func (s *Server) SetPendingPolls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPolls = n
}

// SetJobResult 设置作业最终状态码与日志
func (s *Server) SetJobResult(status, log string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatus = status
	s.jobLog = log
}

// FailSubmission 第 n 次（从 1 开始）批量提交返回 500
func (s *Server) FailSubmission(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSubmission[n] = true
}

// OmitJobID 批量提交的响应不携带作业 ID
func (s *Server) OmitJobID() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitJobID = true
}

// SetRecordsBody 用固定的原始响应体替换作业结果
func (s *Server) SetRecordsBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordsOverride = &body
}

// SetAuthenticateStatus 探测接口固定返回该状态码，0 表示恢复正常
func (s *Server) SetAuthenticateStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authStatus = status
}

// RejectLogin 之后的登录全部返回 401
func (s *Server) RejectLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectLogin = true
}

// Logins 成功与失败的登录请求总数
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Authentications 探测请求总数
func (s *Server) Authentications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls
}

// Submissions 每次批量提交请求的数量
func (s *Server) Submissions() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.submissions...)
}

// SchemeNames 每次批量提交携带的 schemeName 参数
func (s *Server) SchemeNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.schemeNames...)
}

// SoftwareNames 每次批量提交携带的软件标签
func (s *Server) SoftwareNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.software...)
}

// Requested 所有批量提交请求的标识符总数
func (s *Server) Requested() int {
	total := 0
	for _, n := range s.Submissions() {
		total += n
	}
	return total
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	if s.rejectLogin || req.Username != Username || req.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	s.tokenSeq++
	token := "token-" + strconv.Itoa(s.tokenSeq)
	s.tokens[token] = true
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.authCalls++
	if s.authStatus != 0 {
		w.WriteHeader(s.authStatus)
		return
	}
	if !s.tokens[req.Token] {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user": Username})
}

// withToken 校验 token 查询参数
func (s *Server) withToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ok := s.tokens[r.URL.Query().Get("token")]
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.submissions = append(s.submissions, req.Quantity)
	s.schemeNames = append(s.schemeNames, r.URL.Query().Get("schemeName"))
	s.software = append(s.software, req.SoftwareName)
	if s.failSubmission[len(s.submissions)] {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "bulk service unavailable"})
		return
	}
	if mux.Vars(r)["operation"] != "reserve" && mux.Vars(r)["operation"] != "generate" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown operation"})
		return
	}

	key := partitionKey{namespace: req.Namespace, partition: req.PartitionID}
	if s.nextItem[key] == 0 {
		s.nextItem[key] = firstItemID
	}
	ids := make([]string, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		id, err := sctid.Build(s.nextItem[key], req.Namespace, sctid.Partition(req.PartitionID))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		s.nextItem[key]++
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	s.jobSeq++
	jobID := strconv.Itoa(s.jobSeq)
	s.jobs[jobID] = &job{ids: ids}

	if s.omitJobID {
		writeJSON(w, http.StatusOK, map[string]string{"name": "bulk job"})
		return
	}
	// 真实服务返回数字 ID
	writeJSON(w, http.StatusOK, map[string]any{"id": s.jobSeq})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[mux.Vars(r)["jobId"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such job"})
		return
	}
	j.polls++
	status := s.jobStatus
	if j.polls <= s.pendingPolls {
		status = "1"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "log": s.jobLog})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recordsOverride != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(*s.recordsOverride))
		return
	}

	j, ok := s.jobs[mux.Vars(r)["jobId"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such job"})
		return
	}
	records := make([]map[string]string, 0, len(j.ids))
	for _, id := range j.ids {
		records = append(records, map[string]string{"sctid": id, "status": "Reserved"})
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
