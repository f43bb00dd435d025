// Package machine 对计算节点的资源容量与分配进行建模。
//
// 每台机器记录 cpu、内存、磁盘三个维度的容量与当前可用量，以及边缘计算模式下的
// 带宽与单位能耗。外部调度引擎先通过 Accommodate 判断能否放置，再调用 Allocate
// 扣减资源；实例结束后调用 Release 归还。每次变更都会产生一个 Transition 事件，
// 并按顺序保存在机器的历史中。
package machine
