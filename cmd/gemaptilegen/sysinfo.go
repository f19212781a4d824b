package main

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"maptile-platform/logger"
)

const gb = 1 << 30

// reportSystem 记录运行环境，输出目录所在磁盘剩余空间不足 1GB 时告警
func reportSystem(log logger.Logger, outputDir string) {
	platform := runtime.GOOS
	if info, err := host.Info(); err == nil {
		platform = info.Platform + " " + info.PlatformVersion
	}

	cpuModel := runtime.GOARCH
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		cpuModel = infos[0].ModelName
	}
	cores, err := cpu.Counts(false)
	if err != nil || cores <= 0 {
		cores = runtime.NumCPU()
	}

	var totalMem, availMem float64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMem = float64(vm.Total) / gb
		availMem = float64(vm.Available) / gb
	}
	log.Info("系统: %s, CPU: %s x%d, 内存: %.2f GB（可用 %.2f GB）", platform, cpuModel, cores, totalMem, availMem)

	usage, err := disk.Usage(outputDir)
	if err != nil {
		usage, err = disk.Usage(".")
	}
	if err != nil {
		log.Debug("无法获取磁盘信息: %v", err)
		return
	}
	if usage.Free < gb {
		log.Warn("输出磁盘剩余空间不足: %.2f GB", float64(usage.Free)/gb)
	}
}
